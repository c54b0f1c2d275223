package farmerlist

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds one controller per session token.
type Registry struct {
	source   Source
	pageSize int
	debounce time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(source Source, pageSize int, debounce time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		source:      source,
		pageSize:    pageSize,
		debounce:    debounce,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// For returns the session's controller, creating it on first use. The bool is
// true when the controller was just created and still needs Load.
func (r *Registry) For(session string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[session]; ok {
		return c, false
	}
	c := NewController(r.source, r.pageSize, r.debounce, r.logger)
	r.controllers[session] = c
	return c, true
}

// Drop closes and forgets the session's controller.
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	c, ok := r.controllers[session]
	delete(r.controllers, session)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close closes every controller.
func (r *Registry) Close() {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()
	for _, c := range controllers {
		c.Close()
	}
}
