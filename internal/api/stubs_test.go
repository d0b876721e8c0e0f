package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/internal/app"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reportsStub struct {
	mu       sync.Mutex
	sources  []app.Source
	ctxErrs  []error
	result   app.AttemptResult
	err      error
	attempts chan app.Source
	state    domain.ScheduleState
	sentFor  []domain.Period
}

func (s *reportsStub) Attempt(ctx context.Context, source app.Source, now time.Time) (app.AttemptResult, error) {
	s.mu.Lock()
	s.sources = append(s.sources, source)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if s.attempts != nil {
		s.attempts <- source
	}
	return s.result, s.err
}

func (s *reportsStub) SendNow(ctx context.Context, period domain.Period, recipients []string) (*app.DispatchOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentFor = append(s.sentFor, period)
	return &app.DispatchOutcome{Filename: "x.xlsx", Delivered: recipients}, nil
}

func (s *reportsStub) Schedule(ctx context.Context) (*domain.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	return &state, nil
}

func (s *reportsStub) UpdateSchedule(ctx context.Context, in app.ScheduleInput, now time.Time) (*domain.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Config = app.NormalizeSchedule(in)
	state := s.state
	return &state, nil
}

func (s *reportsStub) Location() *time.Location { return time.UTC }

func (s *reportsStub) sourceList() []app.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]app.Source(nil), s.sources...)
}

type keysStub struct {
	key       domain.AccessKey
	lookupErr error
}

func (k *keysStub) CurrentKey(ctx context.Context) (*domain.AccessKey, error) {
	key := k.key
	return &key, nil
}

func (k *keysStub) Rotate(ctx context.Context) (*domain.AccessKey, error) {
	k.key = domain.AccessKey{ID: uuid.New(), Value: "rotated", IsActive: true}
	key := k.key
	return &key, nil
}

func (k *keysStub) Lookup(ctx context.Context, value string) (*domain.AccessKey, bool, error) {
	if k.lookupErr != nil {
		return nil, false, k.lookupErr
	}
	if value == "" || value != k.key.Value {
		return nil, false, nil
	}
	key := k.key
	return &key, true, nil
}

func (k *keysStub) History(ctx context.Context, limit int) ([]domain.AccessKey, error) {
	return []domain.AccessKey{k.key}, nil
}

type auditEntry struct {
	keyID   *uuid.UUID
	success bool
	errMsg  string
	req     app.RequestContext
}

type auditStub struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditStub) Record(ctx context.Context, keyID *uuid.UUID, success bool, errMsg string, req app.RequestContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{keyID: keyID, success: success, errMsg: errMsg, req: req})
}

func (a *auditStub) Recent(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	return nil, nil
}

type limiterStub struct {
	allowed    bool
	retryAfter int
}

func (l *limiterStub) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (bool, int, error) {
	return l.allowed, l.retryAfter, nil
}

type codesStub struct {
	saved map[int64]string
}

func (c *codesStub) List(ctx context.Context, page, perPage int) (app.Page[domain.ProductCode], error) {
	return app.PageRows([]domain.ProductCode{}, page, perPage), nil
}

func (c *codesStub) Save(ctx context.Context, productID int64, code string) error {
	if code != "" && len(code) < 2 {
		return app.ErrInvalidCode
	}
	if c.saved == nil {
		c.saved = map[int64]string{}
	}
	c.saved[productID] = code
	return nil
}

type fixture struct {
	reports *reportsStub
	keys    *keysStub
	audit   *auditStub
	codes   *codesStub
	handler *Handler
}

func newFixture(limiter RateLimiter) *fixture {
	f := &fixture{
		reports: &reportsStub{result: app.AttemptResult{Outcome: app.OutcomeNotDue}},
		keys:    &keysStub{key: domain.AccessKey{ID: uuid.New(), Value: "secret-key", IsActive: true}},
		audit:   &auditStub{},
		codes:   &codesStub{},
	}
	f.handler = NewHandler(Deps{
		Reports:       f.reports,
		Keys:          f.keys,
		Audit:         f.audit,
		Codes:         f.codes,
		Limiter:       limiter,
		Logger:        discardLogger(),
		PublicBaseURL: "https://reports.example.com/",
		RatePerMinute: 30,
	})
	f.handler.now = func() time.Time { return time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC) }
	return f
}
