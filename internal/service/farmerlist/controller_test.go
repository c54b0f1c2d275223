package farmerlist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/repository/memory"
	"github.com/mamadbah2/fieldtrack/internal/service/farmers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingSource records searches so tests can assert on debounce behaviour.
type countingSource struct {
	*farmers.Service

	mu       sync.Mutex
	searches []string
	pages    int
}

func (s *countingSource) Search(ctx context.Context, term string) ([]models.Farmer, error) {
	s.mu.Lock()
	s.searches = append(s.searches, term)
	s.mu.Unlock()
	return s.Service.Search(ctx, term)
}

func (s *countingSource) ListPage(ctx context.Context, pageSize int, cursor docstore.Cursor) (farmers.Page, error) {
	s.mu.Lock()
	s.pages++
	s.mu.Unlock()
	return s.Service.ListPage(ctx, pageSize, cursor)
}

func (s *countingSource) searchTerms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searches...)
}

func (s *countingSource) pageFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

func seededSource(t *testing.T, names ...string) (*countingSource, []string) {
	t.Helper()
	svc := farmers.NewService(memory.NewStore(), nil)
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := svc.Create(context.Background(), models.Farmer{Name: name}, "emp-1")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return &countingSource{Service: svc}, ids
}

func names(v View) []string {
	out := make([]string, 0, len(v.Farmers))
	for _, f := range v.Farmers {
		out = append(out, f.Name)
	}
	return out
}

func TestLoadAndLoadMore(t *testing.T) {
	ctx := context.Background()
	var all []string
	for i := 0; i < 5; i++ {
		all = append(all, fmt.Sprintf("Farmer %02d", i))
	}
	src, _ := seededSource(t, all...)
	c := NewController(src, 2, 10*time.Millisecond, nil)
	defer c.Close()

	assert.Equal(t, StateInitialLoading, c.View().State)

	v, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdlePaginated, v.State)
	assert.Equal(t, all[:2], names(v))
	assert.True(t, v.HasMore)

	v, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[:4], names(v))
	assert.True(t, v.HasMore)

	v, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, names(v))
	assert.False(t, v.HasMore, "last page is exact, no phantom load more")

	fetches := src.pageFetches()
	v, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, names(v))
	assert.Equal(t, fetches, src.pageFetches(), "load more is unreachable at the end")
}

func TestSearchIsDebouncedAndKeepsLatestTerm(t *testing.T) {
	ctx := context.Background()
	src, _ := seededSource(t, "Anil", "Raj", "Rajesh Kumar", "Rajni", "guy named Raj")
	c := NewController(src, 10, 30*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Load(ctx)
	require.NoError(t, err)

	for _, term := range []string{"R", "Ra", "Raj"} {
		_, err := c.SetSearchTerm(term)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return c.View().State == StateSearchIdle
	}, time.Second, 5*time.Millisecond)

	v := c.View()
	assert.Equal(t, []string{"Raj", "Rajesh Kumar", "Rajni"}, names(v))
	assert.False(t, v.HasMore, "search results are not paginated")
	assert.Equal(t, []string{"Raj"}, src.searchTerms(), "earlier keystrokes are cancelled")

	fetches := src.pageFetches()
	_, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetches, src.pageFetches(), "load more is unreachable from search results")
}

func TestClearingSearchRefetchesFirstPage(t *testing.T) {
	ctx := context.Background()
	src, _ := seededSource(t, "Anil", "Bhavesh", "Raj")
	c := NewController(src, 2, 5*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	_, err = c.SetSearchTerm("Raj")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.View().State == StateSearchIdle }, time.Second, 5*time.Millisecond)

	before := src.pageFetches()
	_, err = c.SetSearchTerm("")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v := c.View()
		return v.State == StateIdlePaginated && len(v.Farmers) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, before+1, src.pageFetches())
	assert.Equal(t, []string{"Anil", "Bhavesh"}, names(c.View()))
	assert.True(t, c.View().HasMore)
}

func TestClearingUnusedSearchDoesNotRefetch(t *testing.T) {
	ctx := context.Background()
	src, _ := seededSource(t, "Anil", "Bhavesh", "Raj")
	c := NewController(src, 2, 5*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	_, err = c.LoadMore(ctx)
	require.NoError(t, err)
	before := src.pageFetches()

	_, err = c.SetSearchTerm("R")
	require.NoError(t, err)
	_, err = c.SetSearchTerm("")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	v := c.View()
	assert.Equal(t, StateIdlePaginated, v.State)
	assert.Equal(t, []string{"Anil", "Bhavesh", "Raj"}, names(v), "pagination progress is kept")
	assert.Equal(t, before, src.pageFetches())
	assert.Empty(t, src.searchTerms())
}

func TestEmptySearchBeforeLoadFetchesFirstPage(t *testing.T) {
	ctx := context.Background()
	src, ids := seededSource(t, "Anil", "Bhavesh", "Raj")
	c := NewController(src, 2, 5*time.Millisecond, nil)
	defer c.Close()

	_, err := c.SetSearchTerm("")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return c.View().State == StateIdlePaginated
	}, time.Second, 5*time.Millisecond)

	v := c.View()
	assert.Equal(t, []string{"Anil", "Bhavesh"}, names(v))
	assert.True(t, v.HasMore)
	assert.Equal(t, 1, src.pageFetches())

	v, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anil", "Bhavesh", "Raj"}, names(v))

	v, err = c.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Bhavesh", "Raj"}, names(v))
}

// gatedSource blocks the first page fetch until release is closed.
type gatedSource struct {
	*countingSource

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) ListPage(ctx context.Context, pageSize int, cursor docstore.Cursor) (farmers.Page, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		select {
		case <-s.release:
		case <-ctx.Done():
			return farmers.Page{}, ctx.Err()
		}
	}
	return s.countingSource.ListPage(ctx, pageSize, cursor)
}

func TestClearingSearchDuringFirstLoad(t *testing.T) {
	counting, _ := seededSource(t, "Anil", "Bhavesh", "Raj")
	src := &gatedSource{
		countingSource: counting,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	c := NewController(src, 2, 5*time.Millisecond, nil)
	defer c.Close()

	loadErr := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background())
		loadErr <- err
	}()
	<-src.entered

	_, err := c.SetSearchTerm("")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v := c.View()
		return v.State == StateIdlePaginated && len(v.Farmers) == 2
	}, time.Second, 5*time.Millisecond)

	close(src.release)
	assert.ErrorIs(t, <-loadErr, ErrSuperseded)

	v := c.View()
	assert.Equal(t, StateIdlePaginated, v.State)
	assert.Equal(t, []string{"Anil", "Bhavesh"}, names(v))
	assert.True(t, v.HasMore)
}

func TestDeleteRefetchesFirstPage(t *testing.T) {
	ctx := context.Background()
	src, ids := seededSource(t, "Anil", "Bhavesh", "Chetan", "Dinesh")
	c := NewController(src, 2, 5*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	_, err = c.LoadMore(ctx)
	require.NoError(t, err)

	v, err := c.Delete(ctx, ids[3])
	require.NoError(t, err)
	assert.Equal(t, StateIdlePaginated, v.State)
	assert.Equal(t, []string{"Anil", "Bhavesh"}, names(v), "pagination progress resets")
	assert.True(t, v.HasMore)
}

func TestDeleteFromSearchResults(t *testing.T) {
	ctx := context.Background()
	src, ids := seededSource(t, "Anil", "Raj")
	c := NewController(src, 10, 5*time.Millisecond, nil)
	defer c.Close()

	_, err := c.Load(ctx)
	require.NoError(t, err)
	_, err = c.SetSearchTerm("Raj")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.View().State == StateSearchIdle }, time.Second, 5*time.Millisecond)

	v, err := c.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, StateIdlePaginated, v.State)
	assert.Equal(t, []string{"Anil"}, names(v))
	assert.Empty(t, v.SearchTerm)
}

func TestCloseCancelsPendingSearch(t *testing.T) {
	src, _ := seededSource(t, "Raj")
	c := NewController(src, 10, 20*time.Millisecond, nil)

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	_, err = c.SetSearchTerm("Raj")
	require.NoError(t, err)
	c.Close()
	c.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, src.searchTerms())

	_, err = c.SetSearchTerm("x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Load(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistry(t *testing.T) {
	src, _ := seededSource(t, "Anil")
	r := NewRegistry(src, 10, time.Millisecond, nil)

	a, created := r.For("s1")
	assert.True(t, created)
	again, created := r.For("s1")
	assert.False(t, created)
	assert.Same(t, a, again)

	r.Drop("s1")
	_, err := a.Load(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	b, _ := r.For("s2")
	r.Close()
	_, err = b.SetSearchTerm("A")
	assert.ErrorIs(t, err, ErrClosed)
}
