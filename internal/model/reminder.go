package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidReminder = errors.New("model: invalid reminder")

type Reminder struct {
	ID        int
	Message   string
	FireAt    time.Time
	CreatedAt time.Time
	Sent      bool
}

func (r Reminder) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidReminder, r.ID)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidReminder)
	}
	if r.FireAt.IsZero() {
		return fmt.Errorf("%w: fire_at is required", ErrInvalidReminder)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidReminder)
	}
	return nil
}

// IsDue reports whether the reminder should be delivered at now.
func (r Reminder) IsDue(now time.Time) bool {
	return !r.Sent && !r.FireAt.IsZero() && !r.FireAt.After(now)
}
