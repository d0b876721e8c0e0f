package mailer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type senderStub struct {
	delay time.Duration
	gate  chan struct{}
	err   error
	calls atomic.Int32
	mu    sync.Mutex
	sent  []*gomail.Message
}

func (s *senderStub) DialAndSend(m ...*gomail.Message) error {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.sent = append(s.sent, m...)
	s.mu.Unlock()
	return s.err
}

func newTestMailer(t *testing.T, stub *senderStub) *SMTPMailer {
	t.Helper()
	m, err := NewSMTPMailer(Config{Host: "smtp.example.com", Port: 587, FromAddress: "reports@example.com", FromName: "GST Reports"})
	if err != nil {
		t.Fatalf("NewSMTPMailer returned error: %v", err)
	}
	m.dialer = stub
	return m
}

func TestSend_SetsHeaders(t *testing.T) {
	stub := &senderStub{}
	m := newTestMailer(t, stub)

	if err := m.Send(context.Background(), Mail{To: "a@example.com", Subject: "Report", HTMLBody: "<p>hi</p>"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(stub.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(stub.sent))
	}
	msg := stub.sent[0]
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "a@example.com" {
		t.Fatalf("unexpected To header %v", got)
	}
	if got := msg.GetHeader("From"); len(got) != 1 || !strings.Contains(got[0], "reports@example.com") {
		t.Fatalf("unexpected From header %v", got)
	}
}

func TestSend_WrapsDeliveryError(t *testing.T) {
	stub := &senderStub{err: errors.New("relay refused")}
	m := newTestMailer(t, stub)

	err := m.Send(context.Background(), Mail{To: "a@example.com"})
	if err == nil || !strings.Contains(err.Error(), "relay refused") {
		t.Fatalf("expected wrapped relay error, got %v", err)
	}
}

func TestSend_HonoursContext(t *testing.T) {
	stub := &senderStub{delay: 200 * time.Millisecond}
	m := newTestMailer(t, stub)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := m.Send(ctx, Mail{To: "a@example.com"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewSMTPMailer_RequiresHost(t *testing.T) {
	if _, err := NewSMTPMailer(Config{FromAddress: "a@example.com"}); err == nil {
		t.Fatal("expected missing host error")
	}
}

func TestSend_CancelledContextStartsNoConversation(t *testing.T) {
	stub := &senderStub{}
	m := newTestMailer(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, Mail{To: "a@example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Fatalf("expected no SMTP conversation, got %d", got)
	}
}

func TestSend_AbandonedConversationHoldsSlot(t *testing.T) {
	stub := &senderStub{gate: make(chan struct{})}
	m := newTestMailer(t, stub)

	first, cancelFirst := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelFirst()
	if err := m.Send(first, Mail{To: "a@example.com"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected first send to time out, got %v", err)
	}

	second, cancelSecond := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelSecond()
	if err := m.Send(second, Mail{To: "b@example.com"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second send to wait for the slot, got %v", err)
	}
	if got := stub.calls.Load(); got != 1 {
		t.Fatalf("expected only the abandoned conversation in flight, got %d", got)
	}

	close(stub.gate)
	if err := m.Send(context.Background(), Mail{To: "c@example.com"}); err != nil {
		t.Fatalf("expected send after slot frees, got %v", err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Fatalf("expected two conversations, got %d", got)
	}
}
