package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/observability"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/mailer"
)

// ErrNoRecipients is returned when a send is requested without recipients.
var ErrNoRecipients = errors.New("no report recipients configured")

// DispatchOutcome summarises one delivery.
type DispatchOutcome struct {
	Filename  string            `json:"filename"`
	Rows      int               `json:"rows"`
	Delivered []string          `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Dispatcher writes the report artifact once and mails it to each recipient.
type Dispatcher struct {
	writer  ArtifactWriter
	mailer  Mailer
	metrics *observability.Metrics
	logger  *slog.Logger
	loc     *time.Location
}

func NewDispatcher(writer ArtifactWriter, m Mailer, metrics *observability.Metrics, logger *slog.Logger, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{writer: writer, mailer: m, metrics: metrics, logger: logger, loc: loc}
}

// Send mails the report to every recipient. The artifact is removed afterwards
// whatever the result. Any recipient failure makes the whole send fail.
func (d *Dispatcher) Send(ctx context.Context, report *domain.Report, recipients []string) (*DispatchOutcome, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	artifact, err := d.writer.Write(report.HeaderRows(), report.DataRows(), report.GeneratedAt, report.Filename())
	if err != nil {
		return nil, fmt.Errorf("write report artifact: %w", err)
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			d.logger.Warn("failed to remove report artifact", "path", artifact.Path, "error", err)
		}
	}()

	outcome := &DispatchOutcome{Filename: artifact.Filename, Rows: len(report.Rows)}
	subject := "GST Audit Report – " + report.Period.Label()
	body := d.body(report)

	var errs []error
	for _, recipient := range recipients {
		err := d.mailer.Send(ctx, mailer.Mail{
			To:          recipient,
			Subject:     subject,
			HTMLBody:    body,
			Attachments: []string{artifact.Path},
		})
		if err != nil {
			d.metrics.MailFailure()
			d.logger.Error("failed to mail report", "recipient", recipient, "period", report.Period.String(), "error", err)
			if outcome.Failed == nil {
				outcome.Failed = make(map[string]string)
			}
			outcome.Failed[recipient] = err.Error()
			errs = append(errs, err)
			continue
		}
		outcome.Delivered = append(outcome.Delivered, recipient)
	}

	if len(errs) > 0 {
		return outcome, fmt.Errorf("report delivery failed for %d of %d recipients: %w", len(errs), len(recipients), errors.Join(errs...))
	}
	return outcome, nil
}

func (d *Dispatcher) body(report *domain.Report) string {
	return fmt.Sprintf(`<p>Please find attached the GST audit report for <strong>%s</strong>.</p>
<ul>
<li>Rows: %d</li>
<li>Generated: %s</li>
</ul>`,
		html.EscapeString(report.Period.Label()),
		len(report.Rows),
		html.EscapeString(report.GeneratedAt.In(d.loc).Format("2006-01-02 15:04:05 MST")),
	)
}
