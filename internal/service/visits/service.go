package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

var (
	// ErrTooManyImages is returned when a visit carries more than
	// models.MaxVisitImages images.
	ErrTooManyImages = fmt.Errorf("a visit holds at most %d images", models.MaxVisitImages)
	// ErrInvalidHealth is returned for an unknown crop health grade.
	ErrInvalidHealth = errors.New("crop health must be good, average or poor")
	// ErrMissingFarmer is returned when a visit has no farmer id.
	ErrMissingFarmer = errors.New("visit requires a farmer id")
)

var protectedFields = []string{"id", "farmerId", "createdAt", "createdBy"}

// AggregateMaintainer receives the side effects of visit writes.
type AggregateMaintainer interface {
	VisitCreated(ctx context.Context, farmerID string) error
}

// Service exposes visit reads and writes.
type Service struct {
	store      docstore.Store
	aggregates AggregateMaintainer
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a visit service.
func NewService(store docstore.Store, aggregates AggregateMaintainer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, aggregates: aggregates, logger: logger, now: time.Now}
}

// Create stores the visit and stamps the farmer's last visit date.
func (s *Service) Create(ctx context.Context, visit models.Visit, actorID string) (string, error) {
	if visit.FarmerID == "" {
		return "", ErrMissingFarmer
	}
	if !visit.CropHealth.Valid() {
		return "", ErrInvalidHealth
	}
	if len(visit.Images) > models.MaxVisitImages {
		return "", ErrTooManyImages
	}

	now := s.now()
	if visit.Date == "" {
		visit.Date = docstore.FormatTime(now)
	}
	visit.ID = ""
	visit.CreatedBy = actorID
	visit.CreatedAt = docstore.FormatTime(now)
	visit.UpdatedAt = ""

	doc, err := docstore.Encode(visit)
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, docstore.Visits, doc)
	if err != nil {
		return "", fmt.Errorf("create visit for farmer %s: %w", visit.FarmerID, err)
	}

	if s.aggregates != nil {
		if err := s.aggregates.VisitCreated(ctx, visit.FarmerID); err != nil {
			return id, err
		}
	}

	s.logger.Info("visit created",
		zap.String("visit_id", id),
		zap.String("farmer_id", visit.FarmerID),
		zap.String("crop_id", visit.Crop.ID))
	return id, nil
}

// Get returns nil when the visit does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Visit, error) {
	raw, err := s.store.Get(ctx, docstore.Visits, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load visit %s: %w", id, err)
	}

	visit, err := docstore.Decode[models.Visit](id, raw)
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// Update merges fields into the visit and stamps updatedAt.
func (s *Service) Update(ctx context.Context, id string, fields docstore.Document) error {
	patch := make(docstore.Document, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	for _, k := range protectedFields {
		delete(patch, k)
	}

	if images, ok := patch["images"].([]string); ok && len(images) > models.MaxVisitImages {
		return ErrTooManyImages
	}
	if health, ok := patch["cropHealth"]; ok {
		h := models.CropHealth(fmt.Sprint(health))
		if !h.Valid() {
			return ErrInvalidHealth
		}
		patch["cropHealth"] = string(h)
	}
	if crop, ok := patch["crop"].(models.CropRef); ok {
		patch["crop"] = map[string]any{"id": crop.ID, "name": crop.Name}
	}

	patch = docstore.ToRecord(patch)
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.Update(ctx, docstore.Visits, id, patch); err != nil {
		return fmt.Errorf("update visit %s: %w", id, err)
	}
	return nil
}

// Delete removes the visit. The farmer's last visit date is not rolled back.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, docstore.Visits, id); err != nil {
		return fmt.Errorf("delete visit %s: %w", id, err)
	}
	return nil
}

// ListByFarmer returns the farmer's visits, most recent first.
func (s *Service) ListByFarmer(ctx context.Context, farmerID string) ([]models.Visit, error) {
	return s.list(ctx, "farmerId", farmerID)
}

// ListByCrop returns every visit for the crop, most recent first.
func (s *Service) ListByCrop(ctx context.Context, cropID string) ([]models.Visit, error) {
	return s.list(ctx, "crop.id", cropID)
}

func (s *Service) list(ctx context.Context, field, value string) ([]models.Visit, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Visits,
		Where:      &docstore.Equal{Field: field, Value: value},
		OrderBy:    "date",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list visits by %s=%s: %w", field, value, err)
	}

	out := make([]models.Visit, 0, len(page.Docs))
	for _, d := range page.Docs {
		v, err := docstore.Decode[models.Visit](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
