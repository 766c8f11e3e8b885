package model

import (
	"fmt"
	"time"
)

// DueReminder is a reminder ready for delivery. Recipient is empty when the
// owner's identity mapping is missing; callers skip such items.
type DueReminder struct {
	Recipient string
	Pseudonym string
	Reminder  Reminder
}

type UpcomingDeadline struct {
	Recipient string
	Pseudonym string
	Task      Task
}

type DeadlineKind string

const (
	DeadlineOverdue  DeadlineKind = "overdue"
	DeadlineUrgent   DeadlineKind = "urgent"
	DeadlineUpcoming DeadlineKind = "upcoming"
)

type DeadlineStatus struct {
	Kind      DeadlineKind
	Remaining string
}

func StatusOf(deadline, now time.Time) DeadlineStatus {
	if !deadline.After(now) {
		return DeadlineStatus{Kind: DeadlineOverdue, Remaining: "Overdue"}
	}
	diff := deadline.Sub(now)
	days := int(diff / (24 * time.Hour))
	hours := int((diff % (24 * time.Hour)) / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return DeadlineStatus{Kind: DeadlineUpcoming, Remaining: fmt.Sprintf("%dd %dh remaining", days, hours)}
	case hours > 0:
		return DeadlineStatus{Kind: DeadlineUpcoming, Remaining: fmt.Sprintf("%dh %dm remaining", hours, minutes)}
	default:
		return DeadlineStatus{Kind: DeadlineUrgent, Remaining: fmt.Sprintf("%dm remaining", minutes)}
	}
}
