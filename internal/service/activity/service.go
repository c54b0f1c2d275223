package activity

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// VisitLister lists a farmer's visits.
type VisitLister interface {
	ListByFarmer(ctx context.Context, farmerID string) ([]models.Visit, error)
}

// PurchaseLister lists a farmer's purchases.
type PurchaseLister interface {
	ListByFarmer(ctx context.Context, farmerID string) ([]models.Purchase, error)
}

// Service builds the per-crop timeline of a farmer.
type Service struct {
	visits    VisitLister
	purchases PurchaseLister
}

// NewService wires an activity service.
func NewService(visits VisitLister, purchases PurchaseLister) *Service {
	return &Service{visits: visits, purchases: purchases}
}

// ForFarmerCrop merges the farmer's visits and purchases for one crop,
// most recent first. The store cannot filter on farmer and crop together, so
// the crop filter runs here.
func (s *Service) ForFarmerCrop(ctx context.Context, farmerID, cropID string) ([]models.CropActivity, error) {
	var visits []models.Visit
	var purchases []models.Purchase

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		visits, err = s.visits.ListByFarmer(gctx, farmerID)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = s.purchases.ListByFarmer(gctx, farmerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(visits, purchases, cropID), nil
}

// Merge combines the records for cropID into a single timeline ordered by
// date, newest first. Ties keep visits ahead of purchases.
func Merge(visits []models.Visit, purchases []models.Purchase, cropID string) []models.CropActivity {
	out := make([]models.CropActivity, 0, len(visits)+len(purchases))
	for i := range visits {
		if visits[i].Crop.ID != cropID {
			continue
		}
		v := visits[i]
		out = append(out, models.CropActivity{Kind: models.ActivityVisit, Date: v.Date, Visit: &v})
	}
	for i := range purchases {
		if purchases[i].Crop.ID != cropID {
			continue
		}
		p := purchases[i]
		out = append(out, models.CropActivity{Kind: models.ActivityPurchase, Date: p.Date, Purchase: &p})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return parse(out[i].Date).After(parse(out[j].Date))
	})
	return out
}

func parse(s string) time.Time {
	t, err := docstore.ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
