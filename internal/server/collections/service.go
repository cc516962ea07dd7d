package collections

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/zhinian/blogstore/internal/common"
	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/kv"
)

// Service exposes the generic CRUD operations over one backend store. It
// holds no cached collection state: every operation re-reads the current
// value, and every mutating operation writes the whole value back while
// holding the collection's write lock.
type Service struct {
	store  kv.Store
	locks  *keyedLock
	clock  clock.Clock
	logger logging.Logger
}

func NewService(store kv.Store, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		locks:  newKeyedLock(),
		clock:  clock.New(),
		logger: logger.With("module", "collections"),
	}
}

func (s *Service) now() string {
	return FormatTime(s.clock.Now())
}

func (s *Service) lock(name string) error {
	if !s.locks.acquire(name) {
		return fmt.Errorf("collection %q: write lock contention", name)
	}
	return nil
}

func (s *Service) readList(ctx context.Context, name string) ([]Record, error) {
	raw, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return DecodeList(name, raw)
}

func (s *Service) writeList(ctx context.Context, name string, records []Record) error {
	raw, err := EncodeList(records)
	if err != nil {
		return fmt.Errorf("collection %q: encode: %w", name, err)
	}
	return s.store.Set(ctx, name, raw)
}

// List returns the full ordered record list, or the singleton mapping for
// the settings collection.
func (s *Service) List(ctx context.Context, name string) (any, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if desc.Singleton {
		return DecodeSingleton(name, raw)
	}
	return DecodeList(name, raw)
}

// Get returns the record whose id string-matches the given id, so stored
// numeric ids and string ids compare equal. For the singleton the whole
// mapping is returned regardless of id.
func (s *Service) Get(ctx context.Context, name string, id string) (Record, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	raw, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if desc.Singleton {
		return DecodeSingleton(name, raw)
	}

	records, err := DecodeList(name, raw)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("collection %q: id %q: %w", name, id, common.ErrNotFound)
}

// Create appends a new record with an allocated id and createdAt stamp.
// For the singleton the given fields replace the whole mapping.
func (s *Service) Create(ctx context.Context, name string, fields Record) (Record, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	if err := s.lock(name); err != nil {
		return nil, err
	}
	defer s.locks.release(name)

	if desc.Singleton {
		return s.replaceSingleton(ctx, name, fields)
	}

	records, err := s.readList(ctx, name)
	if err != nil {
		return nil, err
	}

	record := Record{"id": NextID(records)}
	for k, v := range fields {
		record[k] = v
	}
	record["createdAt"] = s.now()

	records = append(records, record)
	if err := s.writeList(ctx, name, records); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "record created", "collection", name, "id", record.ID())
	return record, nil
}

// Update merges the given fields over the existing record and stamps
// updatedAt. The record's id and createdAt are immutable; values for them
// in fields are ignored. For the singleton the fields replace the whole
// mapping, same as Create.
func (s *Service) Update(ctx context.Context, name string, id string, fields Record) (Record, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	if err := s.lock(name); err != nil {
		return nil, err
	}
	defer s.locks.release(name)

	if desc.Singleton {
		return s.replaceSingleton(ctx, name, fields)
	}

	records, err := s.readList(ctx, name)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range records {
		if r.ID() == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("collection %q: id %q: %w", name, id, common.ErrNotFound)
	}

	existing := records[idx]
	merged := make(Record, len(existing)+len(fields))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	merged["id"] = existing["id"]
	if created, ok := existing["createdAt"]; ok {
		merged["createdAt"] = created
	} else {
		delete(merged, "createdAt")
	}
	merged["updatedAt"] = s.now()

	records[idx] = merged
	if err := s.writeList(ctx, name, records); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "record updated", "collection", name, "id", id)
	return merged, nil
}

// Delete removes the record with the given id. Deleting from the singleton
// is forbidden.
func (s *Service) Delete(ctx context.Context, name string, id string) error {
	desc, err := Lookup(name)
	if err != nil {
		return err
	}
	if desc.Singleton {
		return fmt.Errorf("collection %q cannot be deleted: %w", name, common.ErrForbidden)
	}

	if err := s.lock(name); err != nil {
		return err
	}
	defer s.locks.release(name)

	records, err := s.readList(ctx, name)
	if err != nil {
		return err
	}

	filtered := records[:0:0]
	for _, r := range records {
		if r.ID() != id {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == len(records) {
		return fmt.Errorf("collection %q: id %q: %w", name, id, common.ErrNotFound)
	}

	if err := s.writeList(ctx, name, filtered); err != nil {
		return err
	}

	s.logger.Debug(ctx, "record deleted", "collection", name, "id", id)
	return nil
}

// BulkSet overwrites the collection's entire stored value unconditionally
// and returns the number of records written: the sequence length for
// lists, 1 otherwise. The value's shape is not validated; the integrity
// checker reports mismatches afterwards.
func (s *Service) BulkSet(ctx context.Context, name string, value any) (int, error) {
	if _, err := Lookup(name); err != nil {
		return 0, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("collection %q: encode: %w", name, err)
	}

	if err := s.lock(name); err != nil {
		return 0, err
	}
	defer s.locks.release(name)

	if err := s.store.Set(ctx, name, raw); err != nil {
		return 0, err
	}

	count := 1
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		if arr, ok := decoded.([]any); ok {
			count = len(arr)
		}
	}

	s.logger.Debug(ctx, "collection replaced", "collection", name, "count", count)
	return count, nil
}

func (s *Service) replaceSingleton(ctx context.Context, name string, fields Record) (Record, error) {
	raw, err := EncodeSingleton(fields)
	if err != nil {
		return nil, fmt.Errorf("collection %q: encode: %w", name, err)
	}
	if err := s.store.Set(ctx, name, raw); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "singleton replaced", "collection", name)
	return fields, nil
}
