package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	client "github.com/mamadbah2/fieldtrack/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// MessagingService describes the outbound messages the application sends.
type MessagingService interface {
	SendCode(ctx context.Context, phone, code string, ttl time.Duration) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// MetaWhatsAppService delivers messages through the WhatsApp Cloud API.
type MetaWhatsAppService struct {
	client client.Client
	logger *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(client client.Client, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		client: client,
		logger: logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// SendCode delivers a one-time sign-in code.
func (s *MetaWhatsAppService) SendCode(ctx context.Context, phone, code string, ttl time.Duration) error {
	body := fmt.Sprintf("Your FieldTrack sign-in code is %s. It expires in %d minutes. Do not share it.",
		code, int(ttl.Round(time.Minute)/time.Minute))

	return s.SendOutbound(ctx, models.OutboundMessageRequest{To: phone, Message: body})
}

// SendOutbound pushes a text message.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	if req.To == "" {
		return errors.New("missing recipient")
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	if err != nil {
		s.logger.Error("whatsapp send failed", zap.String("to", req.To), zap.Error(err))
		return err
	}

	s.logger.Debug("whatsapp message sent", zap.String("to", req.To), zap.String("message_id", resp.MessageID()))
	return nil
}
