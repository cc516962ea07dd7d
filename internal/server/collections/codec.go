package collections

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zhinian/blogstore/internal/common"
)

// IsAbsent reports whether a raw backend value means "nothing stored":
// a missing key or a stored JSON null. Both decode to empty collections.
func IsAbsent(raw []byte) bool {
	return raw == nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// DecodeList decodes a raw backend value into an ordered record list. An
// absent value (nil raw) decodes to an empty list. A value of any other
// JSON shape surfaces ErrShapeMismatch rather than being coerced.
func DecodeList(name string, raw []byte) ([]Record, error) {
	if raw == nil {
		return []Record{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("collection %q: invalid stored JSON: %w", name, common.ErrShapeMismatch)
	}

	switch val := v.(type) {
	case nil:
		return []Record{}, nil
	case []any:
		records := make([]Record, 0, len(val))
		for i, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("collection %q: element %d is not an object: %w", name, i, common.ErrShapeMismatch)
			}
			records = append(records, Record(m))
		}
		return records, nil
	default:
		return nil, fmt.Errorf("collection %q: expected array, got %T: %w", name, v, common.ErrShapeMismatch)
	}
}

// DecodeSingleton decodes a raw backend value into a single keyed record.
// Absent decodes to an empty record.
func DecodeSingleton(name string, raw []byte) (Record, error) {
	if raw == nil {
		return Record{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("collection %q: invalid stored JSON: %w", name, common.ErrShapeMismatch)
	}

	switch val := v.(type) {
	case nil:
		return Record{}, nil
	case map[string]any:
		return Record(val), nil
	default:
		return nil, fmt.Errorf("collection %q: expected object, got %T: %w", name, v, common.ErrShapeMismatch)
	}
}

// EncodeList is the exact inverse of DecodeList. A nil slice encodes as [].
func EncodeList(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// EncodeSingleton is the exact inverse of DecodeSingleton.
func EncodeSingleton(record Record) ([]byte, error) {
	if record == nil {
		record = Record{}
	}
	return json.Marshal(record)
}
