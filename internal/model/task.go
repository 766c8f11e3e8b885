package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTask = errors.New("model: invalid task")

type Task struct {
	ID                   int
	Content              string
	Completed            bool
	CreatedAt            time.Time
	CompletedAt          *time.Time
	Deadline             *time.Time
	DeadlineReminderSent bool
}

func (t Task) HasDeadline() bool {
	return t.Deadline != nil && !t.Deadline.IsZero()
}

func (t Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidTask, t.ID)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidTask)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidTask)
	}
	if t.Completed && t.CompletedAt == nil {
		return fmt.Errorf("%w: completed_at is required when task is completed", ErrInvalidTask)
	}
	if !t.Completed && t.CompletedAt != nil {
		return fmt.Errorf("%w: completed_at must be nil when task is not completed", ErrInvalidTask)
	}
	return nil
}
