// Package integrity implements the cross-collection consistency checker
// and the conservative repair engine. Integrity problems are data in a
// report, not errors: the store keeps serving while bad records exist.
package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/kv"
)

// Issue kinds.
const (
	IssueTypeError         = "type-error"
	IssueMissingField      = "missing-field"
	IssueInvalidEnum       = "invalid-enum"
	IssueInvalidTimestamp  = "invalid-timestamp"
	IssueDanglingReference = "dangling-reference"
)

// Collection statuses.
const (
	StatusOK        = "ok"
	StatusEmpty     = "empty"
	StatusTypeError = "type-error"
)

// Issue describes one problem found in the stored data, with enough
// structure to drive repair and a human-readable message.
type Issue struct {
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	RecordID   string `json:"recordId,omitempty"`
	Field      string `json:"field,omitempty"`
	Target     string `json:"target,omitempty"`
	Message    string `json:"message"`
}

// CollectionStatus summarizes one collection's stored shape.
type CollectionStatus struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	HasData bool   `json:"hasData"`
}

// Report aggregates the outcome of one full check pass.
type Report struct {
	Timestamp        string                      `json:"timestamp"`
	TotalCollections int                         `json:"totalCollections"`
	TotalRecords     int                         `json:"totalRecords"`
	Healthy          int                         `json:"healthyCollections"`
	Details          map[string]CollectionStatus `json:"details"`
	Issues           []Issue                     `json:"issues"`
}

// Checker reads every collection and validates records against the
// per-kind rules in the collection descriptors. It never mutates state,
// takes no locks, and tolerates concurrent writers: the cross-collection
// pass is an eventual-consistency read, not a snapshot.
type Checker struct {
	store  kv.Store
	clock  clock.Clock
	logger logging.Logger
}

func NewChecker(store kv.Store, logger logging.Logger) *Checker {
	return &Checker{
		store:  store,
		clock:  clock.New(),
		logger: logger.With("module", "integrity"),
	}
}

// Check runs the per-collection pass over every known collection, then the
// cross-collection reference pass. Backend unavailability is the only
// fatal error; everything else ends up in the report.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	report := &Report{
		Timestamp:        collections.FormatTime(c.clock.Now()),
		TotalCollections: len(collections.All()),
		Details:          make(map[string]CollectionStatus),
		Issues:           []Issue{},
	}

	// decoded record lists kept for the reference pass
	decoded := make(map[string][]collections.Record)

	for _, desc := range collections.All() {
		raw, err := c.store.Get(ctx, desc.Name)
		if err != nil {
			return nil, err
		}

		if desc.Singleton {
			c.checkSingleton(report, desc, raw)
			continue
		}

		records, err := collections.DecodeList(desc.Name, raw)
		if err != nil {
			report.Details[desc.Name] = CollectionStatus{Status: StatusTypeError}
			report.Issues = append(report.Issues, Issue{
				Kind:       IssueTypeError,
				Collection: desc.Name,
				Message:    fmt.Sprintf("%s: stored value is not a list", desc.Name),
			})
			continue
		}

		if collections.IsAbsent(raw) {
			report.Details[desc.Name] = CollectionStatus{Status: StatusEmpty}
			continue
		}

		report.Details[desc.Name] = CollectionStatus{
			Status:  StatusOK,
			Count:   len(records),
			HasData: len(records) > 0,
		}
		report.TotalRecords += len(records)
		decoded[desc.Name] = records

		for i, rec := range records {
			c.checkRecord(report, desc, i, rec)
		}
	}

	c.checkReferences(report, decoded)

	for _, st := range report.Details {
		if st.Status == StatusOK {
			report.Healthy++
		}
	}

	c.logger.Info(ctx, "integrity check finished",
		"records", report.TotalRecords, "issues", len(report.Issues))
	return report, nil
}

func (c *Checker) checkSingleton(report *Report, desc collections.Descriptor, raw []byte) {
	record, err := collections.DecodeSingleton(desc.Name, raw)
	if err != nil {
		report.Details[desc.Name] = CollectionStatus{Status: StatusTypeError}
		report.Issues = append(report.Issues, Issue{
			Kind:       IssueTypeError,
			Collection: desc.Name,
			Message:    fmt.Sprintf("%s: stored value is not a mapping", desc.Name),
		})
		return
	}

	if raw == nil || len(record) == 0 {
		report.Details[desc.Name] = CollectionStatus{Status: StatusEmpty}
		return
	}

	report.Details[desc.Name] = CollectionStatus{Status: StatusOK, Count: 1, HasData: true}
	report.TotalRecords++
}

func (c *Checker) checkRecord(report *Report, desc collections.Descriptor, index int, rec collections.Record) {
	id := rec.ID()

	// every record must carry an id: the whole CRUD layer keys on it
	if id == "" {
		report.Issues = append(report.Issues, Issue{
			Kind:       IssueMissingField,
			Collection: desc.Name,
			Field:      "id",
			Message:    fmt.Sprintf("%s record %d: missing id", desc.Name, index),
		})
	}

	for _, field := range desc.Required {
		if fieldEmpty(rec, field) {
			report.Issues = append(report.Issues, Issue{
				Kind:       IssueMissingField,
				Collection: desc.Name,
				RecordID:   id,
				Field:      field,
				Message:    fmt.Sprintf("%s %s: missing required field %q", desc.Name, id, field),
			})
		}
	}

	for _, field := range desc.Numeric {
		if fieldEmpty(rec, field) {
			continue // numeric fields are optional
		}
		if _, ok := rec[field].(float64); !ok {
			report.Issues = append(report.Issues, Issue{
				Kind:       IssueTypeError,
				Collection: desc.Name,
				RecordID:   id,
				Field:      field,
				Message:    fmt.Sprintf("%s %s: %s is not a number", desc.Name, id, field),
			})
		}
	}

	for field, legal := range desc.Enums {
		val, ok := rec[field].(string)
		if !ok || val == "" {
			continue // absence is the missing-field check's business
		}
		if !contains(legal, val) {
			report.Issues = append(report.Issues, Issue{
				Kind:       IssueInvalidEnum,
				Collection: desc.Name,
				RecordID:   id,
				Field:      field,
				Target:     val,
				Message:    fmt.Sprintf("%s %s: invalid %s %q", desc.Name, id, field, val),
			})
		}
	}

	for _, field := range []string{"createdAt", "updatedAt"} {
		val, present := rec[field]
		if !present || val == nil {
			continue
		}
		if s, ok := val.(string); !ok || !validTimestamp(s) {
			report.Issues = append(report.Issues, Issue{
				Kind:       IssueInvalidTimestamp,
				Collection: desc.Name,
				RecordID:   id,
				Field:      field,
				Message:    fmt.Sprintf("%s %s: %s is not a valid timestamp", desc.Name, id, field),
			})
		}
	}
}

// checkReferences verifies every declared cross-collection reference:
// article.category against category names, article.tags entries against
// tag names, comment.articleId against article ids.
func (c *Checker) checkReferences(report *Report, decoded map[string][]collections.Record) {
	for _, desc := range collections.All() {
		records, ok := decoded[desc.Name]
		if !ok {
			continue
		}
		for _, ref := range desc.Refs {
			// an undecodable target collection already has a type-error
			// issue; flagging every reference into it would only add noise
			if report.Details[ref.Collection].Status == StatusTypeError {
				continue
			}
			targets := referenceTargets(decoded[ref.Collection], ref.By)
			for _, rec := range records {
				for _, val := range referenceValues(rec, ref) {
					if _, found := targets[val]; found {
						continue
					}
					report.Issues = append(report.Issues, Issue{
						Kind:       IssueDanglingReference,
						Collection: desc.Name,
						RecordID:   rec.ID(),
						Field:      ref.Field,
						Target:     val,
						Message: fmt.Sprintf("%s %s: references missing %s %q",
							desc.Name, rec.ID(), singular(ref.Collection), val),
					})
				}
			}
		}
	}
}

// referenceTargets builds the set of resolvable values on the referenced
// side: record ids for ByID references, name fields for ByName.
func referenceTargets(records []collections.Record, by collections.RefBy) map[string]struct{} {
	targets := make(map[string]struct{}, len(records))
	for _, rec := range records {
		switch by {
		case collections.ByID:
			if id := rec.ID(); id != "" {
				targets[id] = struct{}{}
			}
		case collections.ByName:
			if name, ok := rec["name"].(string); ok && name != "" {
				targets[name] = struct{}{}
			}
		}
	}
	return targets
}

// referenceValues extracts the reference values a record carries for one
// declared reference. Absent or empty fields reference nothing.
func referenceValues(rec collections.Record, ref collections.Reference) []string {
	val, present := rec[ref.Field]
	if !present || val == nil {
		return nil
	}

	if ref.Multi {
		items, ok := val.([]any)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	if s := stringify(val); s != "" {
		return []string{s}
	}
	return nil
}

func stringify(v any) string {
	return collections.Record{"id": v}.ID()
}

func fieldEmpty(rec collections.Record, field string) bool {
	v, ok := rec[field]
	if !ok || v == nil {
		return true
	}
	s, isString := v.(string)
	return isString && s == ""
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}

func validTimestamp(s string) bool {
	for _, layout := range []string{collections.TimeLayout, time.RFC3339Nano, time.RFC3339} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func singular(collection string) string {
	switch collection {
	case "categories":
		return "category"
	default:
		// articles -> article, tags -> tag
		if len(collection) > 1 && collection[len(collection)-1] == 's' {
			return collection[:len(collection)-1]
		}
		return collection
	}
}
