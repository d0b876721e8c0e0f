package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/rabbitmq"
)

const (
	EventReportDispatched = "gst_report.dispatched"
	EventReportFailed     = "gst_report.failed"
	EventAccessKeyRotated = "access_key.rotated"
)

// ReportEvent is published after every dispatch that reached the mailer.
type ReportEvent struct {
	Period       string    `json:"period"`
	ReportPeriod string    `json:"report_period"`
	Source       string    `json:"source"`
	Recipients   int       `json:"recipients"`
	Rows         int       `json:"rows"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// KeyRotatedEvent is published after a successful key rotation.
type KeyRotatedEvent struct {
	KeyID     uuid.UUID `json:"key_id"`
	RotatedAt time.Time `json:"rotated_at"`
}

func publishEvent(ctx context.Context, events EventPublisher, logger *slog.Logger, routingKey string, body interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(context.WithoutCancel(ctx), rabbitmq.Exchange, routingKey, body); err != nil {
		logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
