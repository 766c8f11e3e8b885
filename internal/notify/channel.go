package notify

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrChannelFull = errors.New("notify: channel full")

type Delivery struct {
	Recipient    string
	Notification Notification
}

// ChannelNotifier hands notifications to an in-process consumer such as the
// console. Delivery does not block: a full buffer is an error for that item.
type ChannelNotifier struct {
	ch      chan Delivery
	dropped atomic.Uint64
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{ch: make(chan Delivery, buffer)}
}

func (c *ChannelNotifier) C() <-chan Delivery {
	return c.ch
}

func (c *ChannelNotifier) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *ChannelNotifier) Deliver(ctx context.Context, recipient string, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.ch <- Delivery{Recipient: recipient, Notification: n}:
		return nil
	default:
		c.dropped.Add(1)
		return ErrChannelFull
	}
}
