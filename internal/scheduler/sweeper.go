// Package scheduler runs the periodic sweep that delivers due reminders and
// upcoming deadline alerts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/todobot/internal/logging"
	"github.com/sandeepkv93/todobot/internal/model"
	"github.com/sandeepkv93/todobot/internal/notify"
	"github.com/sandeepkv93/todobot/internal/storage"
)

var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

const pruneEvery = time.Hour

// Source is the part of the repository a sweep needs.
type Source interface {
	DueReminders(now time.Time) []model.DueReminder
	UpcomingDeadlines(now time.Time, lookahead time.Duration) []model.UpcomingDeadline
	// The mark methods must only mark the record that was scanned: ids are
	// positional and shift when a user deletes an item mid-sweep.
	MarkReminderDelivered(due model.DueReminder) bool
	MarkDeadlineDelivered(up model.UpcomingDeadline) bool
	Flush() bool
}

type Options struct {
	Interval        time.Duration
	Lookahead       time.Duration
	MaxConcurrent   int
	Ledger          storage.DeliveryLedger
	LedgerRetention time.Duration
	Now             func() time.Time
	NewID           func() string
	Logger          *log.Logger
}

type Stats struct {
	Sweeps    uint64
	Delivered uint64
	Forbidden uint64
	Failed    uint64
	Skipped   uint64
	Panics    uint64
	LastSweep time.Time
}

type SweepReport struct {
	ID        string
	At        time.Time
	Reminders int
	Deadlines int
	Delivered int
	Forbidden int
	Failed    int
	Skipped   int
	Err       error
}

type Sweeper struct {
	source   Source
	notifier notify.Notifier
	opts     Options
	logger   *log.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool

	sweepMu   sync.Mutex
	lastPrune time.Time

	sweeps    atomic.Uint64
	delivered atomic.Uint64
	forbidden atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	panics    atomic.Uint64
	lastSweep atomic.Int64
}

func NewSweeper(source Source, notifier notify.Notifier, opts Options) (*Sweeper, error) {
	if source == nil || notifier == nil {
		return nil, errors.New("scheduler: nil source or notifier")
	}
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = 12 * time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Ledger == nil {
		opts.Ledger = storage.NopLedger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Sweeper{
		source:   source,
		notifier: notifier,
		opts:     opts,
		logger:   opts.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start sweeps once immediately and then every interval until Stop or until
// ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop(ctx)
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()
	<-s.doneCh
}

func (s *Sweeper) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Sweeper) Stats() Stats {
	out := Stats{
		Sweeps:    s.sweeps.Load(),
		Delivered: s.delivered.Load(),
		Forbidden: s.forbidden.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
		Panics:    s.panics.Load(),
	}
	if ns := s.lastSweep.Load(); ns != 0 {
		out.LastSweep = time.Unix(0, ns)
	}
	return out
}

func (s *Sweeper) loop(parent context.Context) {
	defer close(s.doneCh)
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var timer *time.Timer
	for {
		report := s.SweepNow(ctx)
		if report.Err != nil {
			s.logger.Error("sweep failed", "sweep", shortID(report.ID), "err", report.Err)
		}
		timer = resetTimer(timer, s.opts.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			stopTimer(timer)
			return
		}
	}
}

type job struct {
	kind         string
	pseudonym    string
	recipient    string
	notification notify.Notification
	reminder     model.DueReminder
	deadline     model.UpcomingDeadline
}

// SweepNow runs one sweep. Sweeps never overlap. Errors and panics are
// reported, not propagated.
func (s *Sweeper) SweepNow(ctx context.Context) (report SweepReport) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	report.ID = s.opts.NewID()
	report.At = s.opts.Now()
	logger := s.logger.With("sweep", shortID(report.ID))

	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			report.Err = fmt.Errorf("scheduler: sweep panicked: %v", r)
		}
		s.sweeps.Add(1)
		s.lastSweep.Store(report.At.UnixNano())
	}()

	if err := ctx.Err(); err != nil {
		report.Err = err
		return report
	}

	jobs := s.collect(report.At, &report)
	results := make([]string, len(jobs))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = s.deliver(ctx, logger, report.ID, j)
			return nil
		})
	}
	_ = g.Wait()

	for _, status := range results {
		switch status {
		case storage.StatusDelivered:
			report.Delivered++
		case storage.StatusForbidden:
			report.Forbidden++
		case storage.StatusFailed:
			report.Failed++
		case storage.StatusSkipped:
			report.Skipped++
		}
	}
	s.delivered.Add(uint64(report.Delivered))
	s.forbidden.Add(uint64(report.Forbidden))
	s.failed.Add(uint64(report.Failed))
	s.skipped.Add(uint64(report.Skipped))

	s.source.Flush()
	s.pruneLedger(ctx, logger, report.At)

	if len(jobs) > 0 {
		logger.Info("sweep finished",
			"reminders", report.Reminders,
			"deadlines", report.Deadlines,
			"delivered", report.Delivered,
			"forbidden", report.Forbidden,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	} else {
		logger.Debug("sweep finished, nothing due")
	}
	return report
}

func (s *Sweeper) collect(now time.Time, report *SweepReport) []job {
	reminders := s.source.DueReminders(now)
	deadlines := s.source.UpcomingDeadlines(now, s.opts.Lookahead)
	report.Reminders = len(reminders)
	report.Deadlines = len(deadlines)

	jobs := make([]job, 0, len(reminders)+len(deadlines))
	for _, due := range reminders {
		jobs = append(jobs, job{
			kind:      storage.KindReminder,
			pseudonym: due.Pseudonym,
			recipient: due.Recipient,
			notification: notify.Notification{
				Kind:      notify.KindReminder,
				ItemID:    due.Reminder.ID,
				Text:      due.Reminder.Message,
				At:        due.Reminder.FireAt,
				CreatedAt: due.Reminder.CreatedAt,
			},
			reminder: due,
		})
	}
	for _, up := range deadlines {
		jobs = append(jobs, job{
			kind:      storage.KindDeadline,
			pseudonym: up.Pseudonym,
			recipient: up.Recipient,
			notification: notify.Notification{
				Kind:      notify.KindDeadline,
				ItemID:    up.Task.ID,
				Text:      up.Task.Content,
				At:        *up.Task.Deadline,
				CreatedAt: up.Task.CreatedAt,
			},
			deadline: up,
		})
	}
	return jobs
}

func (s *Sweeper) deliver(ctx context.Context, logger *log.Logger, sweepID string, j job) (status string) {
	logger = logger.With("kind", j.kind, "user", logging.Pseudonym(j.pseudonym), "item", j.notification.ItemID)
	var deliverErr error
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			status = storage.StatusFailed
			deliverErr = fmt.Errorf("notifier panicked: %v", r)
			logger.Error("delivery panicked", "err", deliverErr)
		}
		s.record(ctx, logger, sweepID, j, status, deliverErr)
	}()

	if j.recipient == "" {
		logger.Warn("no identity mapping, skipping delivery")
		return storage.StatusSkipped
	}

	deliverErr = s.notifier.Deliver(ctx, j.recipient, j.notification)
	switch {
	case deliverErr == nil:
	case errors.Is(deliverErr, notify.ErrForbidden):
		logger.Warn("recipient does not accept notifications")
		return storage.StatusForbidden
	default:
		logger.Error("delivery failed", "err", deliverErr)
		return storage.StatusFailed
	}

	var marked bool
	if j.kind == storage.KindReminder {
		marked = s.source.MarkReminderDelivered(j.reminder)
	} else {
		marked = s.source.MarkDeadlineDelivered(j.deadline)
	}
	if !marked {
		logger.Debug("item removed or changed before it could be marked")
	}
	logger.Info("delivered")
	return storage.StatusDelivered
}

func (s *Sweeper) record(ctx context.Context, logger *log.Logger, sweepID string, j job, status string, deliverErr error) {
	row := storage.Delivery{
		SweepID:     sweepID,
		Kind:        j.kind,
		Pseudonym:   j.pseudonym,
		ItemID:      j.notification.ItemID,
		Status:      status,
		AttemptedAt: s.opts.Now(),
	}
	if deliverErr != nil {
		row.Error = deliverErr.Error()
	}
	if err := s.opts.Ledger.Record(context.WithoutCancel(ctx), row); err != nil {
		logger.Warn("ledger write failed", "err", err)
	}
}

func (s *Sweeper) pruneLedger(ctx context.Context, logger *log.Logger, now time.Time) {
	if s.opts.LedgerRetention <= 0 || now.Sub(s.lastPrune) < pruneEvery {
		return
	}
	s.lastPrune = now
	n, err := s.opts.Ledger.Prune(ctx, now.Add(-s.opts.LedgerRetention))
	if err != nil {
		logger.Warn("ledger prune failed", "err", err)
		return
	}
	if n > 0 {
		logger.Info("pruned ledger", "rows", n)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
