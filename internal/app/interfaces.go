/**
 * @description
 * Collaborator interfaces of the report service. Implementations live in
 * internal/store and pkg/.
 */
package app

import (
	"context"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/mailer"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/xlsxwriter"
)

// SettingsStore persists the schedule, the send marker and the in-flight claim.
type SettingsStore interface {
	GetSchedule(ctx context.Context) (*domain.ScheduleState, error)
	SaveSchedule(ctx context.Context, cfg domain.ScheduleConfig) error
	ClaimPeriod(ctx context.Context, period string, now time.Time, lease time.Duration) (bool, error)
	CompleteClaim(ctx context.Context, period string) error
	ReleaseClaim(ctx context.Context, period string) error
	SetNextRun(ctx context.Context, at *time.Time) error
}

// AccessKeyRepository stores webhook keys.
type AccessKeyRepository interface {
	ActiveKey(ctx context.Context) (*domain.AccessKey, error)
	FindActiveKey(ctx context.Context, value string) (*domain.AccessKey, error)
	InsertActiveKey(ctx context.Context, key domain.AccessKey) error
	RotateKey(ctx context.Context, key domain.AccessKey) error
	ListKeys(ctx context.Context, limit int) ([]domain.AccessKey, error)
}

// AccessLogRepository is the append-only webhook audit trail.
type AccessLogRepository interface {
	InsertAccessLog(ctx context.Context, entry domain.AccessLogEntry) error
	ListAccessLogs(ctx context.Context, limit int) ([]domain.AccessLogEntry, error)
}

// OrderSource reads orders for a date range.
type OrderSource interface {
	FetchOrders(ctx context.Context, span domain.DateRange, statuses []string) ([]domain.Order, error)
}

// TaxSchemaSource lists tax classes with their rates in display order.
type TaxSchemaSource interface {
	ListTaxClassesAndRates(ctx context.Context) ([]domain.TaxClass, error)
}

// ProductCodeStore reads and writes product classification codes.
type ProductCodeStore interface {
	ProductCode(ctx context.Context, productID int64) (code string, parentID int64, err error)
	ListProductCodes(ctx context.Context, limit, offset int) ([]domain.ProductCode, int, error)
	SetProductCode(ctx context.Context, productID int64, code string) error
}

// CodeResolver picks the classification code for a line item.
type CodeResolver interface {
	ResolveCode(ctx context.Context, productID, variantID int64) (string, error)
}

// ArtifactWriter renders report rows into a file.
type ArtifactWriter interface {
	Write(header [][]string, rows [][]string, generatedAt time.Time, filename string) (*xlsxwriter.Artifact, error)
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, mail mailer.Mail) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Locator resolves an IP into a display location.
type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// ReportBuilder builds the report for a period.
type ReportBuilder interface {
	Build(ctx context.Context, period domain.Period) (*domain.Report, error)
}

// ReportSender delivers a built report to recipients.
type ReportSender interface {
	Send(ctx context.Context, report *domain.Report, recipients []string) (*DispatchOutcome, error)
}

// Waker is a single-shot wake-up timer.
type Waker interface {
	Arm(at time.Time)
	Disarm()
	Armed() (time.Time, bool)
}
