// Package notify delivers due reminders and deadline alerts to a recipient.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sandeepkv93/todobot/internal/logging"
)

// ErrForbidden means the recipient does not accept private notifications.
// It is a permanent failure for that item.
var ErrForbidden = errors.New("notify: recipient does not accept notifications")

type Kind string

const (
	KindReminder Kind = "reminder"
	KindDeadline Kind = "deadline"
)

// Notification is presentation-free. Adapters decide how to render it.
type Notification struct {
	Kind      Kind
	ItemID    int
	Text      string
	At        time.Time
	CreatedAt time.Time
}

func (n Notification) Title() string {
	switch n.Kind {
	case KindDeadline:
		return "Deadline Reminder"
	default:
		return "Reminder"
	}
}

func (n Notification) Summary() string {
	switch n.Kind {
	case KindDeadline:
		return fmt.Sprintf("Task #%d is due %s: %s", n.ItemID, n.At.Format("2006-01-02 15:04"), n.Text)
	default:
		return n.Text
	}
}

type Notifier interface {
	Deliver(ctx context.Context, recipient string, n Notification) error
}

type NotifierFunc func(ctx context.Context, recipient string, n Notification) error

func (f NotifierFunc) Deliver(ctx context.Context, recipient string, n Notification) error {
	return f(ctx, recipient, n)
}

// LogNotifier writes each notification as a log line. The recipient is
// never logged.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Deliver(_ context.Context, _ string, n Notification) error {
	l.Logger.Info("notification",
		"kind", string(n.Kind),
		"item", n.ItemID,
		"at", n.At.Format(time.RFC3339),
		"text", n.Summary(),
	)
	return nil
}

// Multi delivers to every notifier and succeeds when at least one does.
// When all fail, the joined error matches ErrForbidden if any target
// reported it.
type Multi []Notifier

func (m Multi) Deliver(ctx context.Context, recipient string, n Notification) error {
	if len(m) == 0 {
		return errors.New("notify: no notifiers configured")
	}
	var errs []error
	delivered := false
	for _, target := range m {
		if err := target.Deliver(ctx, recipient, n); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}

// Recipients restricts delivery to known recipients and reports
// ErrForbidden for everyone else.
type Recipients struct {
	Allowed map[string]bool
	Next    Notifier
}

func (r Recipients) Deliver(ctx context.Context, recipient string, n Notification) error {
	if !r.Allowed[recipient] {
		return fmt.Errorf("%w: unknown recipient", ErrForbidden)
	}
	return r.Next.Deliver(ctx, recipient, n)
}

func Discard() Notifier {
	return LogNotifier{Logger: logging.Discard()}
}
