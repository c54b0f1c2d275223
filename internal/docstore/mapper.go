package docstore

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimestampFields are the record fields stored as provider timestamps and
// exposed to callers as RFC 3339 strings.
var TimestampFields = []string{"createdAt", "updatedAt", "date", "lastVisitDate"}

// FromRecord converts a stored record into its domain shape. Timestamp fields
// become RFC 3339 strings in UTC, every other field passes through untouched,
// and id overwrites any stored "id" field.
func FromRecord(id string, raw Document) Document {
	out := make(Document, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}

	for _, field := range TimestampFields {
		v, ok := out[field]
		if !ok {
			continue
		}
		if t, ok := asTime(v); ok {
			out[field] = FormatTime(t)
		}
	}

	out["id"] = id
	return out
}

// ToRecord is the inverse of FromRecord: timestamp fields holding RFC 3339 or
// date-only strings become time.Time and the id field is dropped.
func ToRecord(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		out[k] = v
	}

	for _, field := range TimestampFields {
		s, ok := out[field].(string)
		if !ok {
			continue
		}
		if t, err := ParseTime(s); err == nil {
			out[field] = t
		}
	}

	return out
}

// Decode maps a stored record onto a model struct through FromRecord.
func Decode[T any](id string, raw Document) (T, error) {
	var out T
	data, err := bson.Marshal(FromRecord(id, raw))
	if err != nil {
		return out, fmt.Errorf("marshal record %s: %w", id, err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode record %s: %w", id, err)
	}
	return out, nil
}

// Encode turns a model struct into its write representation.
func Encode(v any) (Document, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}

	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}

	return ToRecord(Normalize(Document(m))), nil
}

// Normalize replaces driver container types with plain maps and slices.
func Normalize(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = normalizeContainer(v)
	}
	return out
}

func normalizeContainer(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return map[string]any(Normalize(Document(t)))
	case map[string]any:
		return map[string]any(Normalize(Document(t)))
	case Document:
		return map[string]any(Normalize(t))
	case primitive.D:
		m := make(Document, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return map[string]any(Normalize(m))
	case primitive.A:
		return normalizeSlice([]any(t))
	case []any:
		return normalizeSlice(t)
	default:
		return v
	}
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = normalizeContainer(v)
	}
	return out
}

// FormatTime renders t the way timestamp fields are exposed.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case primitive.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}
