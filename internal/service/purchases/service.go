package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/blob"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/service/aggregates"
)

// MaxImages caps the uploaded images of a purchase.
const MaxImages = 5

var (
	// ErrNotFound is returned when a write needs the prior purchase and it
	// does not exist.
	ErrNotFound = errors.New("purchase not found")
	// ErrMissingFarmer is returned when a purchase has no farmer id.
	ErrMissingFarmer = errors.New("purchase requires a farmer id")
	// ErrImageIndex is returned for an image slot outside [0, MaxImages).
	ErrImageIndex = fmt.Errorf("image index must be between 0 and %d", MaxImages-1)
)

var protectedFields = []string{"id", "farmerId", "createdAt", "createdBy"}

// AggregateMaintainer receives the side effects of purchase writes.
type AggregateMaintainer interface {
	PurchaseCreated(ctx context.Context, farmerID string, a aggregates.Amounts) error
	PurchaseUpdated(ctx context.Context, farmerID string, before, after aggregates.Amounts) error
	PurchaseDeleted(ctx context.Context, farmerID string, a aggregates.Amounts) error
}

// Service exposes purchase reads and writes and keeps farmer totals in step.
type Service struct {
	store         docstore.Store
	objects       blob.Store
	aggregates    AggregateMaintainer
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

// NewService wires a purchase service. Uploaded images are served from
// publicBaseURL.
func NewService(store docstore.Store, objects blob.Store, aggregates AggregateMaintainer, publicBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		objects:       objects,
		aggregates:    aggregates,
		publicBaseURL: publicBaseURL,
		logger:        logger,
		now:           time.Now,
	}
}

// Create stores the purchase and adds its amounts to the farmer totals. When
// the totals update fails the purchase id is still returned with the error.
func (s *Service) Create(ctx context.Context, purchase models.Purchase, actorID string) (string, error) {
	if purchase.FarmerID == "" {
		return "", ErrMissingFarmer
	}

	now := s.now()
	if purchase.Date == "" {
		purchase.Date = docstore.FormatTime(now)
	}
	purchase.ID = ""
	purchase.CreatedBy = actorID
	purchase.CreatedAt = docstore.FormatTime(now)
	purchase.UpdatedAt = ""

	doc, err := docstore.Encode(purchase)
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, docstore.Purchases, doc)
	if err != nil {
		return "", fmt.Errorf("create purchase for farmer %s: %w", purchase.FarmerID, err)
	}

	if err := s.aggregates.PurchaseCreated(ctx, purchase.FarmerID, amountsOf(purchase)); err != nil {
		return id, err
	}

	s.logger.Info("purchase created",
		zap.String("purchase_id", id),
		zap.String("farmer_id", purchase.FarmerID),
		zap.Float64("total_amount", purchase.TotalAmount),
		zap.Float64("amount_paid", purchase.AmountPaid))
	return id, nil
}

// Get returns nil when the purchase does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Purchase, error) {
	raw, err := s.store.Get(ctx, docstore.Purchases, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load purchase %s: %w", id, err)
	}

	purchase, err := docstore.Decode[models.Purchase](id, raw)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// Update merges fields into the purchase, then applies the change in
// amountPaid and remainingAmount to the farmer totals.
func (s *Service) Update(ctx context.Context, id string, fields docstore.Document) error {
	original, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if original == nil {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	patch := make(docstore.Document, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	for _, k := range protectedFields {
		delete(patch, k)
	}
	if crop, ok := patch["crop"].(models.CropRef); ok {
		patch["crop"] = map[string]any{"id": crop.ID, "name": crop.Name}
	}

	before := amountsOf(*original)
	after := before
	if v, ok := numberField(patch, "amountPaid"); ok {
		after.Paid = v
	}
	if v, ok := numberField(patch, "remainingAmount"); ok {
		after.Remaining = v
	}

	patch = docstore.ToRecord(patch)
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.Update(ctx, docstore.Purchases, id, patch); err != nil {
		return fmt.Errorf("update purchase %s: %w", id, err)
	}

	return s.aggregates.PurchaseUpdated(ctx, original.FarmerID, before, after)
}

// Delete removes the purchase after subtracting its amounts from the farmer
// totals. The removal proceeds even when the totals cannot be adjusted.
func (s *Service) Delete(ctx context.Context, id string) error {
	original, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if original != nil {
		if err := s.aggregates.PurchaseDeleted(ctx, original.FarmerID, amountsOf(*original)); err != nil {
			s.logger.Warn("failed to roll back farmer totals",
				zap.String("purchase_id", id),
				zap.String("farmer_id", original.FarmerID),
				zap.Error(err))
		}
	}

	if err := s.store.Delete(ctx, docstore.Purchases, id); err != nil {
		return fmt.Errorf("delete purchase %s: %w", id, err)
	}
	return nil
}

// ListByFarmer returns the farmer's purchases, most recent first.
func (s *Service) ListByFarmer(ctx context.Context, farmerID string) ([]models.Purchase, error) {
	return s.list(ctx, "farmerId", farmerID)
}

// ListByCrop returns every purchase for the crop, most recent first.
func (s *Service) ListByCrop(ctx context.Context, cropID string) ([]models.Purchase, error) {
	return s.list(ctx, "crop.id", cropID)
}

// AttachImage uploads an image into slot index of the purchase and records
// its download URL on the purchase.
func (s *Service) AttachImage(ctx context.Context, id string, index int, obj blob.Object) (string, error) {
	if index < 0 || index >= MaxImages {
		return "", ErrImageIndex
	}

	purchase, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if purchase == nil {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	path := blob.PurchaseImagePath(id, index)
	if err := s.objects.Put(ctx, path, obj); err != nil {
		return "", fmt.Errorf("store image %s: %w", path, err)
	}
	url := blob.DownloadURL(s.publicBaseURL, path)

	images := purchase.Images
	for len(images) <= index {
		images = append(images, "")
	}
	images[index] = url

	if err := s.store.Update(ctx, docstore.Purchases, id, docstore.Document{
		"images":    images,
		"updatedAt": s.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("record image on purchase %s: %w", id, err)
	}

	s.logger.Info("purchase image stored", zap.String("purchase_id", id), zap.String("path", path))
	return url, nil
}

func (s *Service) list(ctx context.Context, field, value string) ([]models.Purchase, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Purchases,
		Where:      &docstore.Equal{Field: field, Value: value},
		OrderBy:    "date",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list purchases by %s=%s: %w", field, value, err)
	}

	out := make([]models.Purchase, 0, len(page.Docs))
	for _, d := range page.Docs {
		p, err := docstore.Decode[models.Purchase](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func amountsOf(p models.Purchase) aggregates.Amounts {
	return aggregates.Amounts{Paid: p.AmountPaid, Remaining: p.RemainingAmount}
}

func numberField(doc docstore.Document, key string) (float64, bool) {
	v, ok := doc[key]
	if !ok {
		return 0, false
	}
	f, ok := docstore.NormalizeValue(v).(float64)
	return f, ok
}
