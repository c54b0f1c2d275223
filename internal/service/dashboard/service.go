package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

const fetchConcurrency = 8

// FarmerLister lists every farmer.
type FarmerLister interface {
	ListAll(ctx context.Context) ([]models.Farmer, error)
}

// VisitLister lists a farmer's visits.
type VisitLister interface {
	ListByFarmer(ctx context.Context, farmerID string) ([]models.Visit, error)
}

// Service loads the data behind the dashboard.
type Service struct {
	farmers FarmerLister
	visits  VisitLister
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a dashboard service.
func NewService(farmers FarmerLister, visits VisitLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{farmers: farmers, visits: visits, logger: logger, now: time.Now}
}

// Summary loads all farmers, fetches each farmer's visits concurrently and
// computes the dashboard. A failed visit fetch counts as no visits for that
// farmer; only a failure to list farmers is returned.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	farmers, err := s.farmers.ListAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard farmers: %w", err)
	}

	perFarmer := make([][]models.Visit, len(farmers))
	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, f := range farmers {
		g.Go(func() error {
			visits, err := s.visits.ListByFarmer(ctx, f.ID)
			if err != nil {
				s.logger.Warn("dashboard visit fetch failed", zap.String("farmer_id", f.ID), zap.Error(err))
				return nil
			}
			perFarmer[i] = visits
			return nil
		})
	}
	_ = g.Wait()

	var visits []models.Visit
	for _, list := range perFarmer {
		visits = append(visits, list...)
	}
	return Compute(farmers, visits, s.now()), nil
}
