package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/fieldtrack/internal/blob"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
)

func seedFarmers(t *testing.T, s *Store, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := s.Create(context.Background(), docstore.Farmers, docstore.Document{"name": name})
		require.NoError(t, err)
	}
}

func names(page docstore.Page) []string {
	out := make([]string, 0, len(page.Docs))
	for _, d := range page.Docs {
		out = append(out, d.Data["name"].(string))
	}
	return out
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id, err := s.Create(ctx, docstore.Farmers, docstore.Document{"name": "Anil", "totalDue": 0.0})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.Update(ctx, docstore.Farmers, id, docstore.Document{"village": "Khed"}))

	got, err := s.Get(ctx, docstore.Farmers, id)
	require.NoError(t, err)
	assert.Equal(t, "Anil", got["name"])
	assert.Equal(t, "Khed", got["village"])

	got["name"] = "mutated"
	again, err := s.Get(ctx, docstore.Farmers, id)
	require.NoError(t, err)
	assert.Equal(t, "Anil", again["name"], "returned documents are copies")

	require.NoError(t, s.Delete(ctx, docstore.Farmers, id))
	_, err = s.Get(ctx, docstore.Farmers, id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStoreDeleteTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.Create(ctx, docstore.Visits, docstore.Document{"notes": "x"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, docstore.Visits, id))
	require.NoError(t, s.Delete(ctx, docstore.Visits, id))
	require.NoError(t, s.Delete(ctx, "never-created", "nope"))
}

func TestStoreUpdateMissing(t *testing.T) {
	err := NewStore().Update(context.Background(), docstore.Farmers, "ghost", docstore.Document{"a": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStoreIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.Put(docstore.Farmers, "f1", docstore.Document{"totalDue": int32(100)})

	require.NoError(t, s.Increment(ctx, docstore.Farmers, "f1", map[string]float64{"totalDue": 50, "totalPaid": 25}))

	got, err := s.Get(ctx, docstore.Farmers, "f1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, got["totalDue"])
	assert.Equal(t, 25.0, got["totalPaid"])
}

func TestStorePaginationMatchesSingleFetch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i := 0; i < 23; i++ {
		seedFarmers(t, s, fmt.Sprintf("Farmer %02d", (i*7)%23))
	}
	seedFarmers(t, s, "Farmer 05", "Farmer 05")

	all, err := s.Query(ctx, docstore.Query{Collection: docstore.Farmers, OrderBy: "name"})
	require.NoError(t, err)
	assert.False(t, all.HasMore)

	var paged []docstore.Snapshot
	cursor := docstore.Cursor("")
	for {
		page, err := s.Query(ctx, docstore.Query{Collection: docstore.Farmers, OrderBy: "name", Limit: 10, After: cursor})
		require.NoError(t, err)
		paged = append(paged, page.Docs...)
		if !page.HasMore {
			break
		}
		cursor = page.Next
	}

	require.Len(t, paged, len(all.Docs))
	for i := range paged {
		assert.Equal(t, all.Docs[i].ID, paged[i].ID)
	}
}

func TestStoreHasMoreExactAtBoundary(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedFarmers(t, s, "a", "b", "c", "d")

	first, err := s.Query(ctx, docstore.Query{Collection: docstore.Farmers, OrderBy: "name", Limit: 2})
	require.NoError(t, err)
	assert.True(t, first.HasMore)

	second, err := s.Query(ctx, docstore.Query{Collection: docstore.Farmers, OrderBy: "name", Limit: 2, After: first.Next})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, names(second))
	assert.False(t, second.HasMore, "a full final page must not advertise more")
}

func TestStorePrefixSearchIsPrefixOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedFarmers(t, s, "Rajesh Kumar", "guy named Raj", "Raj", "raj lowercase", "Ramesh", "Rajni")

	page, err := s.Query(ctx, docstore.Query{
		Collection: docstore.Farmers,
		Range:      docstore.PrefixRange("name", "Raj"),
		OrderBy:    "name",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Raj", "Rajesh Kumar", "Rajni"}, names(page))
}

func TestStoreEqualityOnArrayPath(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.Put(docstore.Farmers, "f1", docstore.Document{"name": "A", "crops": []any{map[string]any{"id": "cotton"}, map[string]any{"id": "wheat"}}})
	s.Put(docstore.Farmers, "f2", docstore.Document{"name": "B", "crops": []any{map[string]any{"id": "wheat"}}})
	s.Put(docstore.Farmers, "f3", docstore.Document{"name": "C"})

	page, err := s.Query(ctx, docstore.Query{Collection: docstore.Farmers, Where: &docstore.Equal{Field: "crops.id", Value: "cotton"}})
	require.NoError(t, err)
	require.Len(t, page.Docs, 1)
	assert.Equal(t, "f1", page.Docs[0].ID)
}

func TestStoreOrderByDateDescending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Put(docstore.Visits, fmt.Sprintf("v%d", i), docstore.Document{"farmerId": "f1", "date": base.AddDate(0, 0, i)})
	}
	s.Put(docstore.Visits, "other", docstore.Document{"farmerId": "f2", "date": base})

	first, err := s.Query(ctx, docstore.Query{
		Collection: docstore.Visits,
		Where:      &docstore.Equal{Field: "farmerId", Value: "f1"},
		OrderBy:    "date",
		Descending: true,
		Limit:      3,
	})
	require.NoError(t, err)
	require.Len(t, first.Docs, 3)
	assert.Equal(t, "v4", first.Docs[0].ID)
	assert.True(t, first.HasMore)

	rest, err := s.Query(ctx, docstore.Query{
		Collection: docstore.Visits,
		Where:      &docstore.Equal{Field: "farmerId", Value: "f1"},
		OrderBy:    "date",
		Descending: true,
		After:      first.Next,
	})
	require.NoError(t, err)
	require.Len(t, rest.Docs, 2)
	assert.Equal(t, "v1", rest.Docs[0].ID)
	assert.Equal(t, "v0", rest.Docs[1].ID)
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()
	s := NewObjectStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	path := blob.PurchaseImagePath("p1", 0)
	require.NoError(t, s.Put(ctx, path, blob.Object{Data: []byte{1, 2, 3}, ContentType: "image/jpeg"}))

	obj, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, "purchases/p1/0", path)
	assert.Equal(t, "http://x/media/purchases/p1/0", blob.DownloadURL("http://x/", path))
}
