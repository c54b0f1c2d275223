// Package memory provides in-process implementations of the document and
// object stores, used by tests and STORE_DRIVER=memory runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
)

// Store is a docstore.Store kept in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
	newID       func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]docstore.Document),
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Put stores doc under a caller chosen id, replacing any existing document.
func (s *Store) Put(collection, id string, doc docstore.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = cloneDoc(docstore.Normalize(doc))
}

func (s *Store) Create(_ context.Context, collection string, doc docstore.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.collection(collection)[id] = cloneDoc(docstore.Normalize(doc))
	return id, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return cloneDoc(doc), nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	for k, v := range docstore.Normalize(fields) {
		doc[k] = cloneValue(v)
	}
	return nil
}

func (s *Store) Increment(_ context.Context, collection, id string, deltas map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	for field, delta := range deltas {
		current, _ := docstore.NormalizeValue(doc[field]).(float64)
		doc[field] = current + delta
	}
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *Store) Query(_ context.Context, q docstore.Query) (docstore.Page, error) {
	if err := q.Validate(); err != nil {
		return docstore.Page{}, err
	}

	var afterValue any
	var afterID string
	if q.After != "" {
		v, id, err := q.After.Decode()
		if err != nil {
			return docstore.Page{}, err
		}
		afterValue, afterID = v, id
	}

	orderField := q.OrderField()

	s.mu.RLock()
	matched := make([]docstore.Snapshot, 0)
	for id, doc := range s.collections[q.Collection] {
		if q.Where != nil && !matchEqual(lookup(doc, q.Where.Field), q.Where.Value) {
			continue
		}
		if q.Range != nil && !inRange(lookup(doc, q.Range.Field), q.Range) {
			continue
		}
		matched = append(matched, docstore.Snapshot{ID: id, Data: cloneDoc(doc)})
	}
	s.mu.RUnlock()

	less := func(a, b docstore.Snapshot) int {
		if orderField != "" {
			if c := compareValues(a.Data[orderField], b.Data[orderField]); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	}
	sort.Slice(matched, func(i, j int) bool {
		c := less(matched[i], matched[j])
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if q.After != "" {
		pivot := docstore.Snapshot{ID: afterID, Data: docstore.Document{orderField: afterValue}}
		start := len(matched)
		for i, snap := range matched {
			c := less(snap, pivot)
			if (q.Descending && c < 0) || (!q.Descending && c > 0) {
				start = i
				break
			}
		}
		matched = matched[start:]
	}

	page := docstore.Page{Docs: matched}
	if q.Limit > 0 && len(matched) > q.Limit {
		page.Docs = matched[:q.Limit]
		page.HasMore = true
	}

	if n := len(page.Docs); n > 0 {
		last := page.Docs[n-1]
		var orderValue any
		if orderField != "" {
			orderValue = last.Data[orderField]
		}
		next, err := docstore.NewCursor(orderValue, last.ID)
		if err != nil {
			return docstore.Page{}, err
		}
		page.Next = next
	}

	return page, nil
}

func (s *Store) collection(name string) map[string]docstore.Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]docstore.Document)
		s.collections[name] = c
	}
	return c
}

// lookup resolves a dotted path. Arrays along the path fan out, so the
// result may be a slice of candidates.
func lookup(doc map[string]any, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := doc[head]
	if !ok {
		return nil
	}
	if !nested {
		return v
	}

	switch t := v.(type) {
	case map[string]any:
		return lookup(t, rest)
	case []any:
		out := make([]any, 0, len(t))
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				out = append(out, lookup(m, rest))
			}
		}
		return out
	default:
		return nil
	}
}

func matchEqual(v, want any) bool {
	if list, ok := v.([]any); ok {
		for _, el := range list {
			if matchEqual(el, want) {
				return true
			}
		}
		return false
	}
	return v != nil && compareValues(v, want) == 0
}

func inRange(v any, r *docstore.Range) bool {
	if v == nil {
		return false
	}
	if r.Start != nil && (typeRank(v) != typeRank(r.Start) || compareValues(v, r.Start) < 0) {
		return false
	}
	if r.End != nil && (typeRank(v) != typeRank(r.End) || compareValues(v, r.End) >= 0) {
		return false
	}
	return true
}

// compareValues orders values across types the way the document database
// does: null, numbers, strings, booleans, timestamps.
func compareValues(a, b any) int {
	a, b = docstore.NormalizeValue(a), docstore.NormalizeValue(b)
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case time.Time:
		return av.Compare(b.(time.Time))
	default:
		return 0
	}
}

func typeRank(v any) int {
	switch docstore.NormalizeValue(v).(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	default:
		return 5
	}
}

func cloneDoc(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(cloneDoc(docstore.Document(t)))
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
