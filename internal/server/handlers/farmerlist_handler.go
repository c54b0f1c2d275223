package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/service/farmerlist"
)

// FarmerListHandler serves /api/farmer-list, one list per session.
type FarmerListHandler struct {
	lists  *farmerlist.Registry
	logger *zap.Logger
}

// NewFarmerListHandler constructs the HTTP handler adapter.
func NewFarmerListHandler(lists *farmerlist.Registry, logger *zap.Logger) *FarmerListHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmerListHandler{lists: lists, logger: logger}
}

type searchRequest struct {
	Term string `json:"term" binding:"max=120"`
}

// View returns the session's list, loading the first page on first use.
// ?reload=true starts over from the first page.
func (h *FarmerListHandler) View(c *gin.Context) {
	list, loaded, err := h.list(c)
	if err != nil {
		h.respond(c, list.View(), err)
		return
	}
	if !loaded && c.Query("reload") == "true" {
		v, err := list.Load(c.Request.Context())
		h.respond(c, v, err)
		return
	}
	c.JSON(http.StatusOK, list.View())
}

// More appends the next page.
func (h *FarmerListHandler) More(c *gin.Context) {
	list, _, err := h.list(c)
	if err != nil {
		h.respond(c, list.View(), err)
		return
	}
	v, err := list.LoadMore(c.Request.Context())
	h.respond(c, v, err)
}

// Search sets the search term. The search runs after the debounce delay;
// poll View for the result.
func (h *FarmerListHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	list, _, err := h.list(c)
	if err != nil {
		h.respond(c, list.View(), err)
		return
	}
	v, err := list.SetSearchTerm(req.Term)
	if err != nil {
		h.respond(c, v, err)
		return
	}
	c.JSON(http.StatusAccepted, v)
}

// Delete removes a farmer through the list and returns the refetched first
// page.
func (h *FarmerListHandler) Delete(c *gin.Context) {
	list, _, err := h.list(c)
	if err != nil {
		h.respond(c, list.View(), err)
		return
	}
	v, err := list.Delete(c.Request.Context(), c.Param("id"))
	h.respond(c, v, err)
}

// list returns the session's controller, loading the first page when the
// controller is new.
func (h *FarmerListHandler) list(c *gin.Context) (*farmerlist.Controller, bool, error) {
	list, created := h.lists.For(SessionToken(c))
	if !created {
		return list, false, nil
	}
	_, err := list.Load(c.Request.Context())
	return list, true, err
}

func (h *FarmerListHandler) respond(c *gin.Context, v farmerlist.View, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, v)
	case errors.Is(err, farmerlist.ErrBusy), errors.Is(err, farmerlist.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "view": v})
	case errors.Is(err, farmerlist.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		storeFailure(c, h.logger, "failed to load farmers", err)
	}
}
