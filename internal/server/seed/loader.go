// Package seed implements whole-collection seeding: guarded first-time
// initialization and unconditional reseed from a canonical source. Each
// collection is written independently so one failure never masks the rest.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"

	"github.com/zhinian/blogstore/internal/common"
	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/kv"
)

// Sentinel keys written next to collection data.
const (
	keyInitStatus   = "init_status"
	keyInitDate     = "init_date"
	keySyncStatus   = "sync_status"
	keySyncDate     = "last_sync_date"
	keySyncResults  = "sync_results"
	keyOldMigration = "migration_status"
	keyOldLocalSync = "local_sync_status"
)

// Outcome is the per-collection result of one seed pass.
type Outcome struct {
	Status  string `json:"status"`
	Records int    `json:"records,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result aggregates per-collection outcomes; partial success is reported,
// not masked.
type Result struct {
	Date         string             `json:"date"`
	TotalRecords int                `json:"totalRecords"`
	Results      map[string]Outcome `json:"results"`
}

// Loader writes seed data through the collection service's BulkSet, so
// seed writes hold the same per-collection write locks as regular CRUD.
type Loader struct {
	svc    *collections.Service
	store  kv.Store
	clock  clock.Clock
	logger logging.Logger
}

func NewLoader(svc *collections.Service, store kv.Store, logger logging.Logger) *Loader {
	return &Loader{
		svc:    svc,
		store:  store,
		clock:  clock.New(),
		logger: logger.With("module", "seed"),
	}
}

// InitializeIfEmpty seeds the store only when the users collection is
// empty, so calling it repeatedly can never clobber a live site. On
// success the init sentinels are written.
func (l *Loader) InitializeIfEmpty(ctx context.Context, seed map[string]any) (*Result, error) {
	raw, err := l.store.Get(ctx, "users")
	if err != nil {
		return nil, err
	}
	users, err := collections.DecodeList("users", raw)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		return nil, fmt.Errorf("users collection has %d records: %w",
			len(users), common.ErrAlreadyInitialized)
	}

	l.logger.Info(ctx, "store is empty, seeding", "collections", len(seed))
	result := l.apply(ctx, seed)

	now := collections.FormatTime(l.clock.Now())
	l.setSentinel(ctx, result, keyInitStatus, "completed")
	l.setSentinel(ctx, result, keyInitDate, now)
	result.Date = now

	return result, nil
}

// ResetAndSync unconditionally overwrites every named collection with the
// given seed value. Used for disaster-recovery reseed from an external
// canonical source. Stale migration sentinels are cleared.
func (l *Loader) ResetAndSync(ctx context.Context, seed map[string]any) (*Result, error) {
	l.logger.Info(ctx, "reset and sync", "collections", len(seed))
	result := l.apply(ctx, seed)

	now := collections.FormatTime(l.clock.Now())
	l.setSentinel(ctx, result, keySyncStatus, "completed")
	l.setSentinel(ctx, result, keySyncDate, now)
	result.Date = now

	if encoded, err := json.Marshal(result.Results); err == nil {
		_ = l.store.Set(ctx, keySyncResults, encoded)
	}

	// stale state from older migration paths
	_ = l.store.Delete(ctx, keyOldMigration)
	_ = l.store.Delete(ctx, keyOldLocalSync)

	return result, nil
}

// apply writes each seed collection independently, in registry order, and
// never aborts the batch on one collection's failure.
func (l *Loader) apply(ctx context.Context, seed map[string]any) *Result {
	result := &Result{Results: make(map[string]Outcome, len(seed))}

	for _, name := range seedOrder(seed) {
		count, err := l.svc.BulkSet(ctx, name, seed[name])
		if err != nil {
			l.logger.Error(ctx, "seed write failed", "collection", name, "error", err.Error())
			result.Results[name] = Outcome{Status: "error", Error: err.Error()}
			continue
		}
		result.Results[name] = Outcome{Status: "success", Records: count}
		result.TotalRecords += count
	}

	return result
}

func (l *Loader) setSentinel(ctx context.Context, result *Result, key, value string) {
	encoded, err := json.Marshal(value)
	if err == nil {
		err = l.store.Set(ctx, key, encoded)
	}
	if err != nil {
		l.logger.Error(ctx, "sentinel write failed", "key", key, "error", err.Error())
		result.Results[key] = Outcome{Status: "error", Error: err.Error()}
	}
}

// seedOrder yields the seed's collection names in registry order, with any
// names outside the registry appended alphabetically (BulkSet rejects them,
// which lands in that collection's outcome).
func seedOrder(seed map[string]any) []string {
	ordered := make([]string, 0, len(seed))
	known := make(map[string]bool, len(seed))

	for _, desc := range collections.All() {
		if _, ok := seed[desc.Name]; ok {
			ordered = append(ordered, desc.Name)
			known[desc.Name] = true
		}
	}

	var extra []string
	for name := range seed {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	return append(ordered, extra...)
}

// IsAlreadyInitialized reports whether err is the initialize-only-if-empty
// guard refusing to run.
func IsAlreadyInitialized(err error) bool {
	return errors.Is(err, common.ErrAlreadyInitialized)
}
