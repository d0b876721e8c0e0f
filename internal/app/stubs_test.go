package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/store"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/mailer"
	"github.com/pplcallmesatz/gst-auditor-report/pkg/xlsxwriter"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type settingsStub struct {
	mu          sync.Mutex
	cfg         domain.ScheduleConfig
	lastSent    string
	claim       string
	claimExpiry time.Time
	nextRun     *time.Time
	markerSets  int
	releases    int
	getErr      error
}

func (s *settingsStub) GetSchedule(ctx context.Context) (*domain.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	cfg := s.cfg
	cfg.Recipients = append([]string(nil), s.cfg.Recipients...)
	return &domain.ScheduleState{Config: cfg, LastSentPeriod: s.lastSent, NextRunAt: s.nextRun}, nil
}

func (s *settingsStub) SaveSchedule(ctx context.Context, cfg domain.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

func (s *settingsStub) ClaimPeriod(ctx context.Context, period string, now time.Time, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSent == period {
		return false, nil
	}
	if s.claim == period && now.Before(s.claimExpiry) {
		return false, nil
	}
	s.claim = period
	s.claimExpiry = now.Add(lease)
	return true, nil
}

func (s *settingsStub) CompleteClaim(ctx context.Context, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent = period
	s.claim = ""
	s.markerSets++
	return nil
}

func (s *settingsStub) ReleaseClaim(ctx context.Context, period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claim == period {
		s.claim = ""
	}
	s.releases++
	return nil
}

func (s *settingsStub) SetNextRun(ctx context.Context, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun = at
	return nil
}

type builderStub struct {
	calls   atomic.Int32
	mu      sync.Mutex
	periods []domain.Period
	err     error
	hang    bool
}

func (b *builderStub) Build(ctx context.Context, period domain.Period) (*domain.Report, error) {
	b.calls.Add(1)
	b.mu.Lock()
	b.periods = append(b.periods, period)
	b.mu.Unlock()
	if b.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	return &domain.Report{Period: period, Layout: domain.NewTaxLayout(nil), GeneratedAt: time.Now()}, nil
}

type senderStub struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *senderStub) Send(ctx context.Context, report *domain.Report, recipients []string) (*DispatchOutcome, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return &DispatchOutcome{}, s.err
	}
	return &DispatchOutcome{Filename: report.Filename(), Delivered: recipients}, nil
}

type wakerStub struct {
	mu      sync.Mutex
	at      time.Time
	armed   bool
	arms    int
	disarms int
}

func (w *wakerStub) Arm(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.at, w.armed = at, true
	w.arms++
}

func (w *wakerStub) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.at, w.armed = time.Time{}, false
	w.disarms++
}

func (w *wakerStub) Armed() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at, w.armed
}

type eventsStub struct {
	mu   sync.Mutex
	keys []string
}

func (e *eventsStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, routingKey)
	return nil
}

func (e *eventsStub) published() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.keys...)
}

type keyRepoStub struct {
	mu   sync.Mutex
	keys []domain.AccessKey
}

func (r *keyRepoStub) ActiveKey(ctx context.Context) (*domain.AccessKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.IsActive {
			k := k
			return &k, nil
		}
	}
	return nil, store.ErrNoActiveKey
}

func (r *keyRepoStub) FindActiveKey(ctx context.Context, value string) (*domain.AccessKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.IsActive && k.Value == value {
			k := k
			return &k, nil
		}
	}
	return nil, store.ErrNoActiveKey
}

func (r *keyRepoStub) InsertActiveKey(ctx context.Context, key domain.AccessKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.IsActive {
			return store.ErrActiveKeyExists
		}
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *keyRepoStub) RotateKey(ctx context.Context, key domain.AccessKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.keys {
		if r.keys[i].IsActive {
			r.keys[i].IsActive = false
			at := key.CreatedAt
			r.keys[i].DeactivatedAt = &at
		}
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *keyRepoStub) ListKeys(ctx context.Context, limit int) ([]domain.AccessKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AccessKey(nil), r.keys...), nil
}

func (r *keyRepoStub) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.keys {
		if k.IsActive {
			n++
		}
	}
	return n
}

type logRepoStub struct {
	mu      sync.Mutex
	entries []domain.AccessLogEntry
	err     error
}

func (r *logRepoStub) InsertAccessLog(ctx context.Context, entry domain.AccessLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *logRepoStub) ListAccessLogs(ctx context.Context, limit int) ([]domain.AccessLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AccessLogEntry(nil), r.entries...), nil
}

type locatorStub struct{ location string }

func (l locatorStub) Locate(ctx context.Context, ip string) string { return l.location }

type orderSourceStub struct {
	orders   []domain.Order
	span     domain.DateRange
	statuses []string
}

func (o *orderSourceStub) FetchOrders(ctx context.Context, span domain.DateRange, statuses []string) ([]domain.Order, error) {
	o.span = span
	o.statuses = statuses
	return o.orders, nil
}

type taxSourceStub struct {
	classes []domain.TaxClass
	calls   atomic.Int32
	err     error
}

func (t *taxSourceStub) ListTaxClassesAndRates(ctx context.Context) ([]domain.TaxClass, error) {
	t.calls.Add(1)
	if t.err != nil {
		return nil, t.err
	}
	return t.classes, nil
}

type productCodeStub struct {
	codes map[int64]string
	saved map[int64]string
}

func (p *productCodeStub) ProductCode(ctx context.Context, productID int64) (string, int64, error) {
	code, ok := p.codes[productID]
	if !ok {
		return "", 0, store.ErrProductNotFound
	}
	return code, 0, nil
}

func (p *productCodeStub) ListProductCodes(ctx context.Context, limit, offset int) ([]domain.ProductCode, int, error) {
	return nil, len(p.codes), nil
}

func (p *productCodeStub) SetProductCode(ctx context.Context, productID int64, code string) error {
	if _, ok := p.codes[productID]; !ok {
		return store.ErrProductNotFound
	}
	if p.saved == nil {
		p.saved = make(map[int64]string)
	}
	p.saved[productID] = code
	return nil
}

type writerStub struct {
	dir       string
	artifacts []*xlsxwriter.Artifact
	err       error
}

func (w *writerStub) Write(header [][]string, rows [][]string, generatedAt time.Time, filename string) (*xlsxwriter.Artifact, error) {
	if w.err != nil {
		return nil, w.err
	}
	artifact, err := xlsxwriter.NewWriter(w.dir).Write(header, rows, generatedAt, filename)
	if err != nil {
		return nil, err
	}
	w.artifacts = append(w.artifacts, artifact)
	return artifact, nil
}

type mailerStub struct {
	mu     sync.Mutex
	sent   []mailer.Mail
	failTo map[string]bool
}

func (m *mailerStub) Send(ctx context.Context, mail mailer.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[mail.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, mail)
	return nil
}

func mustUUID() *uuid.UUID {
	id := uuid.New()
	return &id
}
