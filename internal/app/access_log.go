package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

const unknownAgent = "Unknown"

// RequestContext is what the audit trail needs to know about a caller.
type RequestContext struct {
	IP        string
	UserAgent string
}

// AccessLogger appends webhook audit entries. It never fails the caller.
type AccessLogger struct {
	repo    AccessLogRepository
	locator Locator
	logger  *slog.Logger
	now     func() time.Time
}

func NewAccessLogger(repo AccessLogRepository, locator Locator, logger *slog.Logger) *AccessLogger {
	return &AccessLogger{repo: repo, locator: locator, logger: logger, now: time.Now}
}

// Record writes one entry. Store failures are logged and swallowed.
func (l *AccessLogger) Record(ctx context.Context, keyID *uuid.UUID, success bool, errMsg string, req RequestContext) {
	browser, os := parseUserAgent(req.UserAgent)
	location := "Unknown"
	if l.locator != nil {
		location = l.locator.Locate(ctx, req.IP)
	}

	entry := domain.AccessLogEntry{
		ID:           uuid.New(),
		KeyID:        keyID,
		Timestamp:    l.now().UTC(),
		SourceIP:     req.IP,
		Browser:      browser,
		OS:           os,
		Geolocation:  location,
		Success:      success,
		ErrorMessage: errMsg,
	}
	if err := l.repo.InsertAccessLog(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Error("failed to write access log entry", "source_ip", req.IP, "success", success, "error", err)
	}
}

// Recent lists the latest entries first.
func (l *AccessLogger) Recent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return l.repo.ListAccessLogs(ctx, limit)
}

func parseUserAgent(raw string) (browser, os string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownAgent, unknownAgent
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	switch {
	case name == "":
		browser = unknownAgent
	case version == "":
		browser = name
	default:
		browser = name + " " + version
	}
	os = ua.OS()
	if os == "" {
		os = unknownAgent
	}
	return browser, os
}
