package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

type stubVisits struct {
	list []models.Visit
	err  error
}

func (s stubVisits) ListByFarmer(context.Context, string) ([]models.Visit, error) {
	return s.list, s.err
}

type stubPurchases struct {
	list []models.Purchase
}

func (s stubPurchases) ListByFarmer(context.Context, string) ([]models.Purchase, error) {
	return s.list, nil
}

func TestForFarmerCropMergesNewestFirst(t *testing.T) {
	cotton := models.CropRef{ID: "cotton"}
	wheat := models.CropRef{ID: "wheat"}

	svc := NewService(
		stubVisits{list: []models.Visit{
			{ID: "v1", Crop: cotton, Date: "2024-03-01T00:00:00Z"},
			{ID: "v2", Crop: wheat, Date: "2024-03-05T00:00:00Z"},
			{ID: "v3", Crop: cotton, Date: "2024-01-01T10:00:00.5Z"},
		}},
		stubPurchases{list: []models.Purchase{
			{ID: "p1", Crop: cotton, Date: "2024-02-01T00:00:00Z"},
			{ID: "p2", Crop: cotton, Date: "2024-01-01T10:00:00Z"},
		}},
	)

	got, err := svc.ForFarmerCrop(context.Background(), "f1", "cotton")
	require.NoError(t, err)

	var order []string
	for _, a := range got {
		if a.Visit != nil {
			order = append(order, a.Visit.ID)
		} else {
			order = append(order, a.Purchase.ID)
		}
	}
	assert.Equal(t, []string{"v1", "p1", "v3", "p2"}, order)
	assert.Equal(t, models.ActivityPurchase, got[1].Kind)
}

func TestForFarmerCropPropagatesErrors(t *testing.T) {
	svc := NewService(stubVisits{err: errors.New("boom")}, stubPurchases{})
	_, err := svc.ForFarmerCrop(context.Background(), "f1", "c")
	assert.Error(t, err)
}
