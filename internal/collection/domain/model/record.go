package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names shared by every collection.
const (
	FieldID          = "id"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
	FieldPublishedAt = "published_at"
)

// Record is one server-held row. The schema is not known statically, so
// every accessor reads defensively and falls back to the zero value.
type Record map[string]interface{}

// ID returns the record's stable identifier as a string.
func (r Record) ID() string {
	return r.String(FieldID)
}

// String returns the field as a string. Numbers are formatted; anything
// else that is not a string yields "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Bool returns the field as a boolean. SQL backends hand back 0/1 and some
// legacy rows store "true"/"false" strings.
func (r Record) Bool(field string) bool {
	switch v := r[field].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

// Has reports whether the field is present and non-nil.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the field as a timestamp. Unparseable values yield the zero time.
func (r Record) Time(field string) time.Time {
	switch v := r[field].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	case int64:
		return time.Unix(v, 0).UTC()
	}
	return time.Time{}
}

// Timestamp returns the best-effort date of the record: created_at, then
// updated_at, then published_at.
func (r Record) Timestamp() time.Time {
	for _, field := range []string{FieldCreatedAt, FieldUpdatedAt, FieldPublishedAt} {
		if t := r.Time(field); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy so callers can shape payloads without
// touching a snapshot.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IDs returns the ids of records in order, skipping records without one.
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if id := rec.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
