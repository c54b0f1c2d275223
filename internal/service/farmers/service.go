package farmers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// ErrEmptyName is returned when a farmer is created without a name.
var ErrEmptyName = errors.New("farmer name must not be empty")

// Fields written only by the service itself or by aggregate maintenance.
var protectedFields = []string{"id", "createdAt", "createdBy", "totalDue", "totalPaid", "lastVisitDate"}

// Page is one window of the name-ordered farmer list.
type Page struct {
	Farmers []models.Farmer `json:"farmers"`
	Next    docstore.Cursor `json:"next,omitempty"`
	HasMore bool            `json:"hasMore"`
}

// Service exposes farmer reads and writes.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a farmer service.
func NewService(store docstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create stores a new farmer with zeroed totals and returns its id.
func (s *Service) Create(ctx context.Context, farmer models.Farmer, actorID string) (string, error) {
	farmer.Name = strings.TrimSpace(farmer.Name)
	if farmer.Name == "" {
		return "", ErrEmptyName
	}

	farmer.ID = ""
	farmer.Crops = UniqueCrops(farmer.Crops)
	farmer.TotalDue = 0
	farmer.TotalPaid = 0
	farmer.LastVisitDate = ""
	farmer.CreatedBy = actorID
	farmer.CreatedAt = docstore.FormatTime(s.now())
	farmer.UpdatedAt = ""

	doc, err := docstore.Encode(farmer)
	if err != nil {
		return "", err
	}
	doc["crops"] = cropsValue(farmer.Crops)

	id, err := s.store.Create(ctx, docstore.Farmers, doc)
	if err != nil {
		return "", fmt.Errorf("create farmer: %w", err)
	}

	s.logger.Info("farmer created", zap.String("farmer_id", id), zap.String("actor", actorID))
	return id, nil
}

// Get returns nil when the farmer does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.Farmer, error) {
	raw, err := s.store.Get(ctx, docstore.Farmers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load farmer %s: %w", id, err)
	}

	farmer, err := docstore.Decode[models.Farmer](id, raw)
	if err != nil {
		return nil, err
	}
	return &farmer, nil
}

// Update merges fields into the farmer and stamps updatedAt. Totals and the
// last visit date are ignored; they belong to aggregate maintenance.
func (s *Service) Update(ctx context.Context, id string, fields docstore.Document) error {
	patch := make(docstore.Document, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	for _, k := range protectedFields {
		delete(patch, k)
	}

	if name, ok := patch["name"].(string); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return ErrEmptyName
		}
		patch["name"] = name
	}
	if refs, ok := patch["crops"].([]models.CropRef); ok {
		patch["crops"] = cropsValue(UniqueCrops(refs))
	}

	patch = docstore.ToRecord(patch)
	patch["updatedAt"] = s.now().UTC()

	if err := s.store.Update(ctx, docstore.Farmers, id, patch); err != nil {
		return fmt.Errorf("update farmer %s: %w", id, err)
	}
	return nil
}

// Delete removes the farmer only. Its visits and purchases are kept and stay
// reachable by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, docstore.Farmers, id); err != nil {
		return fmt.Errorf("delete farmer %s: %w", id, err)
	}
	s.logger.Info("farmer deleted", zap.String("farmer_id", id))
	return nil
}

// ListPage returns up to pageSize farmers ordered by name, resuming after
// cursor when it is set.
func (s *Service) ListPage(ctx context.Context, pageSize int, cursor docstore.Cursor) (Page, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Farmers,
		OrderBy:    "name",
		Limit:      pageSize,
		After:      cursor,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list farmers: %w", err)
	}

	list, err := decodeAll(page.Docs)
	if err != nil {
		return Page{}, err
	}
	return Page{Farmers: list, Next: page.Next, HasMore: page.HasMore}, nil
}

// Search matches farmers whose name starts with term. Matching is
// case-sensitive and prefix-only.
func (s *Service) Search(ctx context.Context, term string) ([]models.Farmer, error) {
	if term == "" {
		return []models.Farmer{}, nil
	}

	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Farmers,
		Range:      docstore.PrefixRange("name", term),
		OrderBy:    "name",
	})
	if err != nil {
		return nil, fmt.Errorf("search farmers %q: %w", term, err)
	}
	return decodeAll(page.Docs)
}

// ListAll returns every farmer ordered by name.
func (s *Service) ListAll(ctx context.Context) ([]models.Farmer, error) {
	page, err := s.store.Query(ctx, docstore.Query{Collection: docstore.Farmers, OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list all farmers: %w", err)
	}
	return decodeAll(page.Docs)
}

// ListByCrop returns the farmers growing the crop, ordered by name.
func (s *Service) ListByCrop(ctx context.Context, cropID string) ([]models.Farmer, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Farmers,
		Where:      &docstore.Equal{Field: "crops.id", Value: cropID},
		OrderBy:    "name",
	})
	if err != nil {
		return nil, fmt.Errorf("list farmers by crop %s: %w", cropID, err)
	}
	return decodeAll(page.Docs)
}

// UniqueCrops drops repeated crop ids, keeping the first occurrence.
func UniqueCrops(refs []models.CropRef) []models.CropRef {
	refs = lo.Filter(refs, func(r models.CropRef, _ int) bool { return r.ID != "" })
	return lo.UniqBy(refs, func(r models.CropRef) string { return r.ID })
}

func cropsValue(refs []models.CropRef) []any {
	return lo.Map(refs, func(r models.CropRef, _ int) any {
		return map[string]any{"id": r.ID, "name": r.Name}
	})
}

func decodeAll(docs []docstore.Snapshot) ([]models.Farmer, error) {
	out := make([]models.Farmer, 0, len(docs))
	for _, d := range docs {
		f, err := docstore.Decode[models.Farmer](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
