package farmerlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/service/farmers"
)

// State is the phase of a farmer list view.
type State string

const (
	StateInitialLoading State = "initial-loading"
	StateIdlePaginated  State = "idle-paginated"
	StateLoadingMore    State = "loading-more"
	StateSearching      State = "searching"
	StateSearchIdle     State = "search-idle"
)

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("farmer list closed")
	// ErrBusy is returned when a delete arrives while a fetch is in flight.
	ErrBusy = errors.New("farmer list is loading")
	// ErrSuperseded is returned when a newer operation replaced the result.
	ErrSuperseded = errors.New("farmer list result superseded")
)

// Source is the slice of the farmer service the list reads from.
type Source interface {
	ListPage(ctx context.Context, pageSize int, cursor docstore.Cursor) (farmers.Page, error)
	Search(ctx context.Context, term string) ([]models.Farmer, error)
	Delete(ctx context.Context, id string) error
}

// View is a point-in-time copy of the list.
type View struct {
	State      State           `json:"state"`
	Farmers    []models.Farmer `json:"farmers"`
	HasMore    bool            `json:"hasMore"`
	SearchTerm string          `json:"searchTerm"`
	Error      string          `json:"error,omitempty"`
}

// Controller drives one session's farmer list: paging by name, debounced
// prefix search, and refetch after delete.
type Controller struct {
	source   Source
	pageSize int
	debounce time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	items         []models.Farmer
	cursor        docstore.Cursor
	hasMore       bool
	term          string
	searchDerived bool
	lastErr       error
	timer         *time.Timer
	seq           uint64
	closed        bool
}

// NewController builds a controller in the initial-loading state. Call Load
// to fetch the first page.
func NewController(source Source, pageSize int, debounce time.Duration, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:   source,
		pageSize: pageSize,
		debounce: debounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateInitialLoading,
	}
}

// Load fetches the first page and resets any pagination or search progress.
func (c *Controller) Load(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return View{}, ErrClosed
	}
	c.stopTimerLocked()
	c.seq++
	gen := c.seq
	c.term = ""
	c.state = StateInitialLoading
	c.mu.Unlock()

	return c.fetchFirstPage(ctx, gen)
}

// LoadMore appends the next page. It is a no-op unless the list is paginated,
// idle and known to have more records.
func (c *Controller) LoadMore(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return View{}, ErrClosed
	}
	if c.state != StateIdlePaginated || !c.hasMore {
		v := c.viewLocked()
		c.mu.Unlock()
		return v, nil
	}
	gen := c.seq
	cursor := c.cursor
	c.state = StateLoadingMore
	c.mu.Unlock()

	fetchCtx, done := c.bind(ctx)
	page, err := c.source.ListPage(fetchCtx, c.pageSize, cursor)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.seq || c.closed {
		return c.viewLocked(), ErrSuperseded
	}
	c.state = StateIdlePaginated
	if err != nil {
		c.lastErr = err
		c.logger.Warn("load more failed", zap.Error(err))
		return c.viewLocked(), fmt.Errorf("load more farmers: %w", err)
	}
	c.lastErr = nil
	c.items = append(c.items, page.Farmers...)
	c.cursor = page.Next
	c.hasMore = page.HasMore
	return c.viewLocked(), nil
}

// SetSearchTerm records the term and schedules the search after the debounce
// delay. A newer term cancels the pending one, and any result computed for
// an older term is dropped.
func (c *Controller) SetSearchTerm(term string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return View{}, ErrClosed
	}

	c.stopTimerLocked()
	c.seq++
	gen := c.seq
	c.term = term
	c.timer = time.AfterFunc(c.debounce, func() {
		c.runSearch(gen, term)
	})
	return c.viewLocked(), nil
}

// Delete removes a farmer and refetches the first page.
func (c *Controller) Delete(ctx context.Context, id string) (View, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return View{}, ErrClosed
	}
	if c.state != StateIdlePaginated && c.state != StateSearchIdle {
		c.mu.Unlock()
		return View{}, ErrBusy
	}
	c.mu.Unlock()

	if err := c.source.Delete(ctx, id); err != nil {
		return View{}, fmt.Errorf("delete farmer: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return View{}, ErrClosed
	}
	c.stopTimerLocked()
	c.seq++
	gen := c.seq
	c.term = ""
	c.state = StateInitialLoading
	c.mu.Unlock()

	return c.fetchFirstPage(ctx, gen)
}

// View returns the current list.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close cancels the pending search and any in-flight fetch. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.seq++
	c.stopTimerLocked()
	c.cancel()
}

func (c *Controller) runSearch(gen uint64, term string) {
	c.mu.Lock()
	if gen != c.seq || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil

	if strings.TrimSpace(term) == "" {
		// Pages already on screen are kept unless a search replaced them or
		// the first page never landed.
		if !c.searchDerived && c.state != StateInitialLoading {
			c.state = StateIdlePaginated
			c.mu.Unlock()
			return
		}
		c.state = StateInitialLoading
		c.mu.Unlock()
		if _, err := c.fetchFirstPage(c.ctx, gen); err != nil && !errors.Is(err, ErrSuperseded) {
			c.logger.Debug("refetch after search cleared failed", zap.Error(err))
		}
		return
	}

	c.state = StateSearching
	c.mu.Unlock()

	results, err := c.source.Search(c.ctx, term)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.seq || c.closed {
		return
	}
	if err != nil {
		c.lastErr = err
		c.logger.Warn("farmer search failed", zap.String("term", term), zap.Error(err))
	} else {
		c.lastErr = nil
		c.items = results
	}
	c.cursor = ""
	c.hasMore = false
	c.searchDerived = true
	c.state = StateSearchIdle
}

func (c *Controller) fetchFirstPage(ctx context.Context, gen uint64) (View, error) {
	fetchCtx, done := c.bind(ctx)
	page, err := c.source.ListPage(fetchCtx, c.pageSize, "")
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.seq || c.closed {
		return c.viewLocked(), ErrSuperseded
	}
	c.state = StateIdlePaginated
	c.searchDerived = false
	if err != nil {
		c.lastErr = err
		c.items = nil
		c.cursor = ""
		c.hasMore = false
		c.logger.Warn("first page fetch failed", zap.Error(err))
		return c.viewLocked(), fmt.Errorf("list farmers: %w", err)
	}
	c.lastErr = nil
	c.items = page.Farmers
	c.cursor = page.Next
	c.hasMore = page.HasMore
	return c.viewLocked(), nil
}

// bind returns a context cancelled by either ctx or Close.
func (c *Controller) bind(ctx context.Context) (context.Context, func()) {
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return fetchCtx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) viewLocked() View {
	v := View{
		State:      c.state,
		Farmers:    append([]models.Farmer(nil), c.items...),
		HasMore:    c.hasMore,
		SearchTerm: c.term,
	}
	if v.Farmers == nil {
		v.Farmers = []models.Farmer{}
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
	}
	return v
}
