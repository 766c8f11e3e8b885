package storage

import "time"

const (
	KindReminder = "reminder"
	KindDeadline = "deadline"
)

const (
	StatusDelivered = "delivered"
	StatusForbidden = "forbidden"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Delivery is one ledger row. It only ever carries the pseudonym, never the
// platform identifier or the item content.
type Delivery struct {
	ID          string
	SweepID     string
	Kind        string
	Pseudonym   string
	ItemID      int
	Status      string
	Error       string
	AttemptedAt time.Time
}

type DeliveryFilter struct {
	SweepID   string
	Pseudonym string
	Status    string
	Kind      string
	Limit     int
	Offset    int
}
