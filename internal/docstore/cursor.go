package docstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is an opaque pagination position: the order value and id of the
// last document of a page.
type Cursor string

type cursorPayload struct {
	Kind  string  `json:"k"`
	Value string  `json:"v,omitempty"`
	Num   float64 `json:"n,omitempty"`
	Bool  bool    `json:"b,omitempty"`
	ID    string  `json:"id"`
}

// NewCursor encodes the position after the document id whose order field
// holds value.
func NewCursor(value any, id string) (Cursor, error) {
	p := cursorPayload{ID: id}
	switch v := NormalizeValue(value).(type) {
	case nil:
		p.Kind = "z"
	case string:
		p.Kind, p.Value = "s", v
	case float64:
		p.Kind, p.Num = "n", v
	case bool:
		p.Kind, p.Bool = "b", v
	case time.Time:
		p.Kind, p.Value = "t", v.UTC().Format(time.RFC3339Nano)
	default:
		return "", fmt.Errorf("%w: unsupported order value %T", ErrInvalidCursor, value)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// Decode returns the order value and document id held by the cursor.
func (c Cursor) Decode() (any, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if p.ID == "" {
		return nil, "", fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}

	switch p.Kind {
	case "z":
		return nil, p.ID, nil
	case "s":
		return p.Value, p.ID, nil
	case "n":
		return p.Num, p.ID, nil
	case "b":
		return p.Bool, p.ID, nil
	case "t":
		t, err := time.Parse(time.RFC3339Nano, p.Value)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return t, p.ID, nil
	default:
		return nil, "", fmt.Errorf("%w: unknown kind %q", ErrInvalidCursor, p.Kind)
	}
}

// NormalizeValue folds driver and numeric variants onto a small set of
// comparable types: nil, string, float64, bool and time.Time.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
