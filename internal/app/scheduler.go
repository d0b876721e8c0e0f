/**
 * @description
 * Timer adapters: the cron-driven health checks and the single-shot wake-up
 * armed for the next configured send moment.
 */
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/config"
	"github.com/robfig/cron/v3"
)

// WakeTimer is a single-shot timer. Arming replaces any pending wake-up.
type WakeTimer struct {
	mu         sync.Mutex
	timer      *time.Timer
	at         time.Time
	generation uint64
	handler    func()
}

func NewWakeTimer() *WakeTimer {
	return &WakeTimer{}
}

// SetHandler sets the function run when the timer fires.
func (w *WakeTimer) SetHandler(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = fn
}

func (w *WakeTimer) Arm(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	gen := w.generation
	w.at = at

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	w.timer = time.AfterFunc(delay, func() { w.fire(gen) })
}

func (w *WakeTimer) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.at = time.Time{}
	handler := w.handler
	w.mu.Unlock()

	if handler != nil {
		handler()
	}
}

func (w *WakeTimer) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.generation++
	w.at = time.Time{}
}

// Armed reports the pending wake-up time.
func (w *WakeTimer) Armed() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at, w.timer != nil
}

// Scheduler manages the cron health checks and the wake-up timer.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	waker  *WakeTimer
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, waker *WakeTimer, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		waker:  waker,
		logger: logger,
		config: cfg,
	}
}

// Start registers the health checks, hooks the wake-up timer and arms it.
func (s *Scheduler) Start() {
	s.waker.SetHandler(s.jobs.PrimaryWake)

	if _, err := s.cron.AddFunc(s.config.HealthCheckHourlySchedule, s.jobs.HourlyHealthCheck); err != nil {
		s.logger.Error("failed to schedule hourly health check", "error", err)
	} else {
		s.logger.Info("scheduled hourly health check", "schedule", s.config.HealthCheckHourlySchedule)
	}

	if _, err := s.cron.AddFunc(s.config.HealthCheckFastSchedule, s.jobs.FastHealthCheck); err != nil {
		s.logger.Error("failed to schedule fast health check", "error", err)
	} else {
		s.logger.Info("scheduled fast health check", "schedule", s.config.HealthCheckFastSchedule)
	}

	s.cron.Start()
	s.jobs.Arm()
}

// Stop disarms the wake-up and gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	s.waker.Disarm()
	return s.cron.Stop()
}
