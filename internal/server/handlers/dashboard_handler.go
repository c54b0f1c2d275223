package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/service/dashboard"
)

// DashboardService computes the admin dashboard.
type DashboardService interface {
	Summary(ctx context.Context) (dashboard.Summary, error)
}

// DashboardHandler serves /api/dashboard.
type DashboardHandler struct {
	svc    DashboardService
	logger *zap.Logger
}

// NewDashboardHandler constructs the HTTP handler adapter.
func NewDashboardHandler(svc DashboardService, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{svc: svc, logger: logger}
}

// Get returns the dashboard summary.
func (h *DashboardHandler) Get(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		storeFailure(c, h.logger, "failed to build dashboard", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
