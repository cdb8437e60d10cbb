// Package whatsapp delivers alert and digest messages to the configured recipients.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/config"
	client "github.com/mamadbah2/grainloss/pkg/clients/whatsapp"
)

// ErrEmptyMessage is returned when there is nothing to send.
var ErrEmptyMessage = errors.New("message body is empty")

// Notifier broadcasts a text message.
type Notifier interface {
	Broadcast(ctx context.Context, body string) error
}

// AlertService sends every message to all configured recipients.
type AlertService struct {
	recipients []string
	client     client.Client
	logger     *zap.Logger
}

// NewAlertService wires a new service instance.
func NewAlertService(cfg config.WhatsAppConfig, c client.Client, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		recipients: cfg.Recipients,
		client:     c,
		logger:     logger,
	}
}

// Broadcast sends body to each recipient. A failed recipient does not stop the
// others; all failures are returned joined.
func (s *AlertService) Broadcast(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}

	var errs []error
	for _, to := range s.recipients {
		resp, err := s.client.SendTextMessage(ctx, client.SendTextMessageRequest{To: to, Body: body})
		if err != nil {
			s.logger.Error("failed sending alert", zap.String("to", to), zap.Error(err))
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
			continue
		}

		var messageID string
		if resp != nil && len(resp.Messages) > 0 {
			messageID = resp.Messages[0].ID
		}
		s.logger.Info("alert sent", zap.String("to", to), zap.String("message_id", messageID))
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the log when WhatsApp is not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Broadcast(_ context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}
	n.logger.Info("alert (whatsapp disabled)", zap.String("body", body))
	return nil
}
