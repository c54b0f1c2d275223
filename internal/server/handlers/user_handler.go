package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// UserService is the staff account surface used over HTTP.
type UserService interface {
	Create(ctx context.Context, user models.User) (string, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, fields docstore.Document) error
	Delete(ctx context.Context, id string) error
}

// UserHandler serves /api/users. Every route is admin only.
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

// NewUserHandler constructs the HTTP handler adapter.
func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger}
}

type userRequest struct {
	Name  string `json:"name" binding:"required,max=120"`
	Phone string `json:"phone" binding:"required,min=6,max=20"`
	Role  string `json:"role" binding:"required,oneof=admin employee"`
}

type userPatch struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=120"`
	Phone *string `json:"phone" binding:"omitempty,min=6,max=20"`
	Role  *string `json:"role" binding:"omitempty,oneof=admin employee"`
}

// Create provisions a user who may then sign in.
func (h *UserHandler) Create(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	id, err := h.users.Create(c.Request.Context(), models.User{Name: req.Name, Phone: req.Phone, Role: models.Role(req.Role)})
	if err != nil {
		storeFailure(c, h.logger, "failed to create user", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// List returns every user.
func (h *UserHandler) List(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		storeFailure(c, h.logger, "failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one user.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load user", err)
		return
	}
	if user == nil {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update merges the provided fields into the user.
func (h *UserHandler) Update(c *gin.Context) {
	var req userPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	fields := docstore.Document{}
	setIfPresent(fields, "name", req.Name)
	setIfPresent(fields, "phone", req.Phone)
	setIfPresent(fields, "role", req.Role)
	if len(fields) == 0 {
		badRequest(c, h.logger, errors.New("no fields to update"))
		return
	}

	if err := h.users.Update(c.Request.Context(), c.Param("id"), fields); err != nil {
		storeFailure(c, h.logger, "failed to update user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a user. Admins cannot remove themselves.
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == actorID(c) {
		badRequest(c, h.logger, errors.New("cannot delete your own account"))
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		storeFailure(c, h.logger, "failed to delete user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
