package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	"github.com/mamadbah2/fieldtrack/internal/service/auth"
)

// AuthService is the sign-in surface used over HTTP.
type AuthService interface {
	RequestCode(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, phone, code string) (auth.Session, *models.User, error)
	Authenticate(ctx context.Context, token string) (auth.Session, *models.User, error)
	Logout(token string)
}

// AuthHandler exposes sign-in endpoints and the session middleware.
type AuthHandler struct {
	svc    AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(svc AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

type requestCodeRequest struct {
	Phone string `json:"phone" binding:"required,min=6,max=20"`
}

type verifyRequest struct {
	Phone string `json:"phone" binding:"required,min=6,max=20"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// RequestCode sends a one-time code to a registered phone.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	code, err := h.svc.RequestCode(c.Request.Context(), req.Phone)
	switch {
	case errors.Is(err, auth.ErrUnregisteredPhone):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to issue sign-in code", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send code"})
		return
	}

	resp := gin.H{"status": "sent"}
	if code != "" {
		resp["code"] = code
	}
	c.JSON(http.StatusAccepted, resp)
}

// Verify exchanges a code for a session token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	session, user, err := h.svc.Verify(c.Request.Context(), req.Phone, req.Code)
	switch {
	case errors.Is(err, auth.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, auth.ErrUserNotProvisioned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("failed to verify code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to sign in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": session.Token, "expiresAt": session.ExpiresAt, "user": user})
}

// Logout ends the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		h.svc.Logout(token)
	}
	c.Status(http.StatusNoContent)
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}

// RequireSession rejects requests without a valid bearer token and attaches
// the session user to the context.
func (h *AuthHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		_, user, err := h.svc.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, auth.ErrInvalidSession):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		case errors.Is(err, auth.ErrUserNotProvisioned):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err != nil:
			h.logger.Error("failed to authenticate session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unable to authenticate"})
			return
		}

		c.Set(sessionKey, token)
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
