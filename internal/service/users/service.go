package users

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

var (
	// ErrPhoneTaken is returned when another user already has the phone.
	ErrPhoneTaken = errors.New("phone number already registered")
	// ErrInvalidRole is returned for roles other than admin and employee.
	ErrInvalidRole = errors.New("role must be admin or employee")
	// ErrInvalidPhone is returned for an empty phone number.
	ErrInvalidPhone = errors.New("phone number must not be empty")
)

// Service manages pre-provisioned staff accounts.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a user service.
func NewService(store docstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create provisions a user and returns its id.
func (s *Service) Create(ctx context.Context, user models.User) (string, error) {
	user.Phone = NormalizePhone(user.Phone)
	if user.Phone == "" {
		return "", ErrInvalidPhone
	}
	if user.Role != models.RoleAdmin && user.Role != models.RoleEmployee {
		return "", ErrInvalidRole
	}

	existing, err := s.GetByPhone(ctx, user.Phone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrPhoneTaken
	}

	user.ID = ""
	user.CreatedAt = docstore.FormatTime(s.now())
	user.UpdatedAt = ""

	doc, err := docstore.Encode(user)
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, docstore.Users, doc)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user provisioned", zap.String("user_id", id), zap.String("role", string(user.Role)))
	return id, nil
}

// Get returns nil when the user does not exist.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	raw, err := s.store.Get(ctx, docstore.Users, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}

	user, err := docstore.Decode[models.User](id, raw)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPhone returns nil when no user has the phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	page, err := s.store.Query(ctx, docstore.Query{
		Collection: docstore.Users,
		Where:      &docstore.Equal{Field: "phone", Value: NormalizePhone(phone)},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	if len(page.Docs) == 0 {
		return nil, nil
	}

	user, err := docstore.Decode[models.User](page.Docs[0].ID, page.Docs[0].Data)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every user ordered by name.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	page, err := s.store.Query(ctx, docstore.Query{Collection: docstore.Users, OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]models.User, 0, len(page.Docs))
	for _, d := range page.Docs {
		u, err := docstore.Decode[models.User](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Update merges fields into the user.
func (s *Service) Update(ctx context.Context, id string, fields docstore.Document) error {
	patch := make(docstore.Document, len(fields)+1)
	for k, v := range fields {
		if k == "id" || k == "createdAt" {
			continue
		}
		patch[k] = v
	}

	if role, ok := patch["role"]; ok {
		r := models.Role(fmt.Sprint(role))
		if r != models.RoleAdmin && r != models.RoleEmployee {
			return ErrInvalidRole
		}
		patch["role"] = string(r)
	}
	if phone, ok := patch["phone"].(string); ok {
		phone = NormalizePhone(phone)
		if phone == "" {
			return ErrInvalidPhone
		}
		existing, err := s.GetByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != id {
			return ErrPhoneTaken
		}
		patch["phone"] = phone
	}

	patch["updatedAt"] = s.now().UTC()
	if err := s.store.Update(ctx, docstore.Users, id, patch); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	return nil
}

// Delete removes the user.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, docstore.Users, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// EnsureAdmin provisions an admin for phone unless a user already holds it.
func (s *Service) EnsureAdmin(ctx context.Context, phone, name string) error {
	existing, err := s.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = s.Create(ctx, models.User{Name: name, Phone: phone, Role: models.RoleAdmin})
	return err
}

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
