package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/blob"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
)

// PurchaseService is the purchase surface used over HTTP.
type PurchaseService interface {
	Create(ctx context.Context, purchase models.Purchase, actorID string) (string, error)
	Get(ctx context.Context, id string) (*models.Purchase, error)
	Update(ctx context.Context, id string, fields docstore.Document) error
	Delete(ctx context.Context, id string) error
	ListByCrop(ctx context.Context, cropID string) ([]models.Purchase, error)
	AttachImage(ctx context.Context, id string, index int, obj blob.Object) (string, error)
}

// PurchaseHandler serves /api/purchases.
type PurchaseHandler struct {
	purchases      PurchaseService
	crops          CropResolver
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewPurchaseHandler constructs the HTTP handler adapter.
func NewPurchaseHandler(purchases PurchaseService, crops CropResolver, maxUploadBytes int, logger *zap.Logger) *PurchaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseHandler{purchases: purchases, crops: crops, maxUploadBytes: int64(maxUploadBytes), logger: logger}
}

type purchaseRequest struct {
	FarmerID        string    `json:"farmerId" binding:"required"`
	Crop            cropInput `json:"crop" binding:"required"`
	Date            string    `json:"date"`
	Items           []string  `json:"items" binding:"required,min=1,dive,required"`
	Quantity        float64   `json:"quantity" binding:"gte=0"`
	TotalAmount     float64   `json:"totalAmount" binding:"gte=0"`
	AmountPaid      float64   `json:"amountPaid" binding:"gte=0"`
	RemainingAmount *float64  `json:"remainingAmount" binding:"omitempty,gte=0"`
	WorkingCombo    *bool     `json:"workingCombo"`
}

type purchasePatch struct {
	Crop            *cropInput `json:"crop"`
	Date            *string    `json:"date"`
	Items           *[]string  `json:"items" binding:"omitempty,min=1,dive,required"`
	Quantity        *float64   `json:"quantity" binding:"omitempty,gte=0"`
	TotalAmount     *float64   `json:"totalAmount" binding:"omitempty,gte=0"`
	AmountPaid      *float64   `json:"amountPaid" binding:"omitempty,gte=0"`
	RemainingAmount *float64   `json:"remainingAmount" binding:"omitempty,gte=0"`
	WorkingCombo    *bool      `json:"workingCombo"`
}

// Create records a purchase and adds its amounts to the farmer totals. The
// remaining amount defaults to total minus paid.
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := validDate(req.Date); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	remaining := req.TotalAmount - req.AmountPaid
	if req.RemainingAmount != nil {
		remaining = *req.RemainingAmount
	}

	crop, err := h.crops.Ensure(c.Request.Context(), models.CropRef{ID: req.Crop.ID, Name: req.Crop.Name}, actorID(c))
	if err != nil {
		storeFailure(c, h.logger, "failed to resolve crop", err)
		return
	}

	id, err := h.purchases.Create(c.Request.Context(), models.Purchase{
		FarmerID:        req.FarmerID,
		Crop:            crop,
		Date:            req.Date,
		Items:           req.Items,
		Quantity:        req.Quantity,
		TotalAmount:     req.TotalAmount,
		AmountPaid:      req.AmountPaid,
		RemainingAmount: remaining,
		WorkingCombo:    req.WorkingCombo,
	}, actorID(c))
	if err != nil {
		if id != "" {
			h.logger.Warn("purchase stored but farmer totals not updated", zap.String("purchase_id", id), zap.Error(err))
			c.JSON(http.StatusCreated, gin.H{"id": id, "warning": "farmer totals not updated"})
			return
		}
		storeFailure(c, h.logger, "failed to create purchase", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get returns one purchase.
func (h *PurchaseHandler) Get(c *gin.Context) {
	purchase, err := h.purchases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		storeFailure(c, h.logger, "failed to load purchase", err)
		return
	}
	if purchase == nil {
		notFound(c, "purchase")
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// ListByCrop returns the purchases recorded for ?cropId=.
func (h *PurchaseHandler) ListByCrop(c *gin.Context) {
	cropID := c.Query("cropId")
	if cropID == "" {
		badRequest(c, h.logger, errors.New("cropId is required"))
		return
	}
	list, err := h.purchases.ListByCrop(c.Request.Context(), cropID)
	if err != nil {
		storeFailure(c, h.logger, "failed to list purchases", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Update merges the provided fields into the purchase.
func (h *PurchaseHandler) Update(c *gin.Context) {
	var req purchasePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if req.Date != nil {
		if err := validDate(*req.Date); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	fields := docstore.Document{}
	setIfPresent(fields, "date", req.Date)
	setIfPresent(fields, "items", req.Items)
	setIfPresent(fields, "quantity", req.Quantity)
	setIfPresent(fields, "totalAmount", req.TotalAmount)
	setIfPresent(fields, "amountPaid", req.AmountPaid)
	setIfPresent(fields, "remainingAmount", req.RemainingAmount)
	setIfPresent(fields, "workingCombo", req.WorkingCombo)
	if req.Crop != nil {
		crop, err := h.crops.Ensure(c.Request.Context(), models.CropRef{ID: req.Crop.ID, Name: req.Crop.Name}, actorID(c))
		if err != nil {
			storeFailure(c, h.logger, "failed to resolve crop", err)
			return
		}
		fields["crop"] = crop
	}
	if len(fields) == 0 {
		badRequest(c, h.logger, errors.New("no fields to update"))
		return
	}

	if err := h.purchases.Update(c.Request.Context(), c.Param("id"), fields); err != nil {
		storeFailure(c, h.logger, "failed to update purchase", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a purchase and subtracts it from the farmer totals.
func (h *PurchaseHandler) Delete(c *gin.Context) {
	if err := h.purchases.Delete(c.Request.Context(), c.Param("id")); err != nil {
		storeFailure(c, h.logger, "failed to delete purchase", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage stores the multipart "image" file in the given slot.
func (h *PurchaseHandler) UploadImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, h.logger, errors.New("image index must be a number"))
		return
	}

	data, contentType, err := readUpload(c, "image", h.maxUploadBytes)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}

	url, err := h.purchases.AttachImage(c.Request.Context(), c.Param("id"), index, blob.Object{Data: data, ContentType: contentType})
	if err != nil {
		storeFailure(c, h.logger, "failed to store purchase image", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

func readUpload(c *gin.Context, field string, limit int64) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", errors.New("multipart field " + field + " is required")
	}
	if limit > 0 && fh.Size > limit {
		return nil, "", errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
