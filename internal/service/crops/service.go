package crops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// ErrEmptyName is returned when a crop has neither an id nor a name.
var ErrEmptyName = errors.New("crop name must not be empty")

// Service manages the global crop catalog.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a crop catalog service.
func NewService(store docstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create adds a crop to the catalog and returns its id.
func (s *Service) Create(ctx context.Context, name, actorID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}

	doc, err := docstore.Encode(models.Crop{
		Name:      name,
		CreatedBy: actorID,
		CreatedAt: docstore.FormatTime(s.now()),
	})
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, docstore.Crops, doc)
	if err != nil {
		return "", fmt.Errorf("create crop %q: %w", name, err)
	}

	s.logger.Info("crop created", zap.String("crop_id", id), zap.String("name", name))
	return id, nil
}

// Get returns nil when the crop does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Crop, error) {
	raw, err := s.store.Get(ctx, docstore.Crops, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load crop %s: %w", id, err)
	}

	crop, err := docstore.Decode[models.Crop](id, raw)
	if err != nil {
		return nil, err
	}
	return &crop, nil
}

// List returns the whole catalog ordered by name.
func (s *Service) List(ctx context.Context) ([]models.Crop, error) {
	page, err := s.store.Query(ctx, docstore.Query{Collection: docstore.Crops, OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	return decodeAll(page.Docs)
}

// Ensure resolves a crop reference typed during data entry. A reference with
// an id is returned as is; otherwise the catalog is searched by exact name and
// a new crop is created on demand.
func (s *Service) Ensure(ctx context.Context, ref models.CropRef, actorID string) (models.CropRef, error) {
	if ref.ID != "" {
		return ref, nil
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return models.CropRef{}, ErrEmptyName
	}

	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Crops,
		Where:      &docstore.Equal{Field: "name", Value: name},
		Limit:      1,
	})
	if err != nil {
		return models.CropRef{}, fmt.Errorf("find crop %q: %w", name, err)
	}
	if len(page.Docs) > 0 {
		return models.CropRef{ID: page.Docs[0].ID, Name: name}, nil
	}

	id, err := s.Create(ctx, name, actorID)
	if err != nil {
		return models.CropRef{}, err
	}
	return models.CropRef{ID: id, Name: name}, nil
}

// Delete removes a crop. References embedded in farmers, visits and
// purchases are left untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, docstore.Crops, id); err != nil {
		return fmt.Errorf("delete crop %s: %w", id, err)
	}
	return nil
}

func decodeAll(docs []docstore.Snapshot) ([]models.Crop, error) {
	out := make([]models.Crop, 0, len(docs))
	for _, d := range docs {
		crop, err := docstore.Decode[models.Crop](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, crop)
	}
	return out, nil
}
