package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type DocumentStore interface {
	Load() *Document
	Save(doc *Document) error
}

type DeliveryLedger interface {
	Record(ctx context.Context, in Delivery) error
	List(ctx context.Context, filter DeliveryFilter) ([]Delivery, error)
	Counts(ctx context.Context) (map[string]int, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// NopLedger discards every record. It stands in when no ledger file is
// configured.
type NopLedger struct{}

func (NopLedger) Record(context.Context, Delivery) error { return nil }

func (NopLedger) List(context.Context, DeliveryFilter) ([]Delivery, error) { return nil, nil }

func (NopLedger) Counts(context.Context) (map[string]int, error) { return map[string]int{}, nil }

func (NopLedger) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (NopLedger) Close() error { return nil }
