package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrRelayClosed is returned by Publish once the relay is closed
var ErrRelayClosed = errors.New("broadcast relay closed")

// DeliverFunc receives every payload published by any instance
type DeliverFunc func(payload []byte)

// Relay carries encoded messages between hub instances. Every payload passed
// to Publish on any instance reaches the DeliverFunc of every started relay,
// including the publisher's own.
type Relay interface {
	Start(ctx context.Context, deliver DeliverFunc) error
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// LocalRelay delivers in-process only. It suits single instance deployments.
type LocalRelay struct {
	mu      sync.RWMutex
	deliver DeliverFunc
	closed  bool
}

// NewLocalRelay creates a LocalRelay
func NewLocalRelay() *LocalRelay {
	return &LocalRelay{}
}

// Start sets the delivery target
func (r *LocalRelay) Start(ctx context.Context, deliver DeliverFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliver = deliver
	return nil
}

// Publish delivers synchronously on the caller's goroutine
func (r *LocalRelay) Publish(ctx context.Context, payload []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRelayClosed
	}
	if r.deliver != nil {
		r.deliver(payload)
	}
	return nil
}

// Close stops delivery
func (r *LocalRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

var _ Relay = (*LocalRelay)(nil)
