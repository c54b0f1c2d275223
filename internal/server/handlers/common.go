package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/service/crops"
	"github.com/mamadbah2/fieldtrack/internal/service/farmers"
	"github.com/mamadbah2/fieldtrack/internal/service/purchases"
	"github.com/mamadbah2/fieldtrack/internal/service/users"
	"github.com/mamadbah2/fieldtrack/internal/service/visits"
	"github.com/mamadbah2/fieldtrack/pkg/imagecodec"
)

const (
	userKey    = "fieldtrack.user"
	sessionKey = "fieldtrack.session"
)

// CurrentUser returns the user attached by the session middleware.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// SessionToken returns the token attached by the session middleware.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func actorID(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// Service errors caused by the request rather than the store.
var invalidInput = []error{
	crops.ErrEmptyName,
	farmers.ErrEmptyName,
	visits.ErrInvalidHealth,
	visits.ErrTooManyImages,
	visits.ErrMissingFarmer,
	purchases.ErrMissingFarmer,
	purchases.ErrImageIndex,
	users.ErrInvalidRole,
	users.ErrInvalidPhone,
}

// storeFailure maps errors that reach the HTTP layer from services.
func storeFailure(c *gin.Context, logger *zap.Logger, msg string, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, purchases.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case errors.Is(err, users.ErrPhoneTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func setIfPresent[T any](doc docstore.Document, key string, v *T) {
	if v != nil {
		doc[key] = *v
	}
}

// validImages accepts stored media URLs and data URLs returned by
// /api/images/compress.
func validImages(images ...string) error {
	for i, img := range images {
		if strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "http://") {
			continue
		}
		if _, err := imagecodec.Decode(img); err != nil {
			return fmt.Errorf("image %d must be a URL or a compressed image: %w", i, err)
		}
	}
	return nil
}
