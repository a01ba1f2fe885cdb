package scanner

import (
	"context"
	"sync"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"go.uber.org/zap"
)

// Station is one packing view. It runs at most one session at a time;
// starting a scan for another item cancels the running one first.
type Station struct {
	controller *Controller
	packer     Packer
	notifier   Notifier
	cfg        SessionConfig
	logger     *zap.Logger

	mu      sync.Mutex
	current *Session
	closed  bool
}

// NewStation creates a Station
func NewStation(controller *Controller, packer Packer, notifier Notifier, cfg SessionConfig, logger *zap.Logger) *Station {
	return &Station{
		controller: controller,
		packer:     packer,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Scan runs a session for target until it is packed or cancelled
func (st *Station) Scan(ctx context.Context, target Target) (Result, error) {
	sess := NewSession(target, st.controller, st.packer, st.notifier, st.cfg, st.logger)

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return Result{Cancelled: true}, nil
	}
	prev := st.current
	st.current = sess
	st.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	defer func() {
		st.mu.Lock()
		if st.current == sess {
			st.current = nil
		}
		st.mu.Unlock()
	}()

	return sess.Run(ctx)
}

// Current returns the running session, or nil
func (st *Station) Current() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Cancel stops the running session, if any
func (st *Station) Cancel() {
	if sess := st.Current(); sess != nil {
		sess.Cancel()
	}
}

// Close tears the station down. The running session is cancelled and the
// camera released; later Scan calls return cancelled at once.
func (st *Station) Close() {
	st.mu.Lock()
	st.closed = true
	sess := st.current
	st.mu.Unlock()

	if sess != nil {
		sess.Cancel()
	}
	st.controller.ReleaseAll()
}

// PendingTargets lists the order's unpacked items in order
func PendingTargets(o *client.Order) []Target {
	var targets []Target
	for _, item := range o.Items {
		if item.Fulfilled {
			continue
		}
		targets = append(targets, Target{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
		})
	}
	return targets
}
