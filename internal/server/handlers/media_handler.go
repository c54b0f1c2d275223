package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/blob"
	"github.com/mamadbah2/fieldtrack/pkg/imagecodec"
)

// MediaHandler compresses uploads and serves stored objects.
type MediaHandler struct {
	objects blob.Store
	opts    imagecodec.Options
	logger  *zap.Logger
}

// NewMediaHandler constructs the HTTP handler adapter.
func NewMediaHandler(objects blob.Store, opts imagecodec.Options, logger *zap.Logger) *MediaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaHandler{objects: objects, opts: opts, logger: logger}
}

// Compress turns the multipart "image" file into an embeddable JPEG data URL.
func (h *MediaHandler) Compress(c *gin.Context) {
	data, _, err := readUpload(c, "image", int64(h.opts.MaxUploadBytes))
	if errors.Is(err, errUploadTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": imagecodec.ErrTooLarge.Error()})
		return
	}
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}

	res, err := imagecodec.Compress(bytes.NewReader(data), h.opts)
	switch {
	case errors.Is(err, imagecodec.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	case errors.Is(err, imagecodec.ErrUnsupported):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("image compression failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to compress image"})
		return
	}

	c.JSON(http.StatusOK, res)
}

// Serve streams a stored object.
func (h *MediaHandler) Serve(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		notFound(c, "object")
		return
	}

	obj, err := h.objects.Get(c.Request.Context(), path)
	if errors.Is(err, blob.ErrNotFound) {
		notFound(c, "object")
		return
	}
	if err != nil {
		h.logger.Error("failed to read object", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to read object"})
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Data)
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, contentType, obj.Data)
}
