package integrity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/kv"
)

// Repair outcome strings, one per touched collection.
const (
	OutcomeInitialized = "initialized"
	OutcomeAlreadySet  = "already initialized"
)

// RepairResult records, per collection, what the repair pass did.
type RepairResult struct {
	Timestamp string            `json:"timestamp"`
	Results   map[string]string `json:"results"`
}

// Repairer applies the safe fixes a checker report allows: initializing
// absent list collections to an empty list and installing the default
// settings when the singleton is missing or empty. Record content is never
// touched: dangling references, missing fields, bad enums and bad
// timestamps stay reported until the data owner fixes them.
type Repairer struct {
	store  kv.Store
	clock  clock.Clock
	logger logging.Logger
}

func NewRepairer(store kv.Store, logger logging.Logger) *Repairer {
	return &Repairer{
		store:  store,
		clock:  clock.New(),
		logger: logger.With("module", "repair"),
	}
}

// defaultSettings is the hard-coded configuration installed when the
// settings singleton is missing.
func defaultSettings(startDate string) collections.Record {
	return collections.Record{
		"siteName":          "Blog",
		"siteDescription":   "Welcome to my blog",
		"postsPerPage":      12,
		"commentModeration": true,
		"totalWords":        0,
		"totalViews":        0,
		"totalVisitors":     0,
		"startDate":         startDate,
	}
}

// Repair walks the report and fixes what is safe to fix. Every collection
// is re-read before any write, so running Repair twice is a no-op the
// second time and existing data is never overwritten, even against a stale
// report. One collection's failure never aborts the rest.
func (r *Repairer) Repair(ctx context.Context, report *Report) (*RepairResult, error) {
	result := &RepairResult{
		Timestamp: collections.FormatTime(r.clock.Now()),
		Results:   make(map[string]string),
	}

	for _, desc := range collections.All() {
		status, checked := report.Details[desc.Name]
		if !checked || status.Status != StatusEmpty {
			continue
		}

		if desc.Singleton {
			result.Results[desc.Name] = r.repairSingleton(ctx, desc.Name)
		} else {
			result.Results[desc.Name] = r.repairList(ctx, desc.Name)
		}
	}

	r.logger.Info(ctx, "repair pass finished", "touched", len(result.Results))
	return result, nil
}

func (r *Repairer) repairList(ctx context.Context, name string) string {
	raw, err := r.store.Get(ctx, name)
	if err != nil {
		return fmt.Sprintf("repair failed: %v", err)
	}
	if !collections.IsAbsent(raw) {
		return OutcomeAlreadySet
	}

	if err := r.store.Set(ctx, name, []byte(`[]`)); err != nil {
		return fmt.Sprintf("repair failed: %v", err)
	}
	r.logger.Info(ctx, "initialized empty collection", "collection", name)
	return OutcomeInitialized
}

func (r *Repairer) repairSingleton(ctx context.Context, name string) string {
	raw, err := r.store.Get(ctx, name)
	if err != nil {
		return fmt.Sprintf("repair failed: %v", err)
	}

	if raw != nil {
		record, err := collections.DecodeSingleton(name, raw)
		// a non-empty or malformed mapping is the data owner's to fix
		if err != nil || len(record) > 0 {
			return OutcomeAlreadySet
		}
	}

	startDate := r.clock.Now().UTC().Format("2006-01-02")
	encoded, err := json.Marshal(defaultSettings(startDate))
	if err != nil {
		return fmt.Sprintf("repair failed: %v", err)
	}
	if err := r.store.Set(ctx, name, encoded); err != nil {
		return fmt.Sprintf("repair failed: %v", err)
	}
	r.logger.Info(ctx, "installed default settings")
	return OutcomeInitialized
}
