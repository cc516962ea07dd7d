// Package collections turns the flat key-value backend into a set of named
// record collections with per-record CRUD, id allocation and a keyed
// settings singleton. Each collection is stored as one backend value; every
// mutation re-reads the whole value, changes it and writes it back.
package collections

import (
	"math"
	"strconv"
	"time"
)

// TimeLayout is the wire format for createdAt/updatedAt stamps. It matches
// the millisecond-precision ISO-8601 form the historical data was written
// with, so old and new records sort together.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is a schemaless mapping of field name to value. Required fields
// are enforced by the integrity checker, not at write time.
type Record map[string]any

// ID returns the record id as a string. Numeric ids (JSON numbers decode as
// float64) are rendered without a fractional part when integral, so 1 and
// "1" compare equal. A missing id yields "".
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// FormatTime renders t in the canonical stamp format, always UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
