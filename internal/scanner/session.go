package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"go.uber.org/zap"
)

// SessionConfig tunes a scan session
type SessionConfig struct {
	FPS             float64
	Cooldown        time.Duration
	MutationTimeout time.Duration
}

// DefaultSessionConfig returns the station defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FPS:             DefaultFPS,
		Cooldown:        DefaultCooldown,
		MutationTimeout: DefaultMutationTimeout,
	}
}

// Result is how a session ended
type Result struct {
	Packed    bool
	Cancelled bool
	// Changed is false when the server already had the item packed
	Changed bool
	Order   *client.Order
}

// Session scans for one target item. It owns the camera handle for its
// whole run and releases it on every exit path.
type Session struct {
	target     Target
	controller *Controller
	decoder    *Decoder
	packer     Packer
	notifier   Notifier
	cfg        SessionConfig
	logger     *zap.Logger

	active  atomic.Bool
	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	lastErr error

	lastMismatch   string
	lastMismatchAt time.Time
}

// NewSession creates a session for target
func NewSession(target Target, controller *Controller, packer Packer, notifier Notifier, cfg SessionConfig, logger *zap.Logger) *Session {
	return &Session{
		target:     target,
		controller: controller,
		decoder:    NewDecoder(),
		packer:     packer,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With(zap.String("order_id", target.OrderID.String()), zap.String("sku", target.SKU)),
		done:       make(chan struct{}),
	}
}

// Target returns the item being scanned
func (s *Session) Target() Target {
	return s.target
}

// Active reports whether the session is sampling
func (s *Session) Active() bool {
	return s.active.Load()
}

// LastError returns the most recent failure seen by the session
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Run loads the decoder, acquires the camera and samples until the target
// is packed, the session is cancelled, or ctx ends. Cancellation is not an
// error. A session runs once.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Result{}, ErrSessionActive
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.stopped.Load() {
		return s.cancelled()
	}
	s.active.Store(true)
	defer s.active.Store(false)

	if err := s.decoder.Load(); err != nil {
		return s.fail(err)
	}

	h, err := s.controller.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return s.cancelled()
		}
		return s.fail(err)
	}
	defer h.Release()

	s.notifier.Notify(Notice{Kind: NoticeScanning, Target: s.target})

	var result Result
	verifier := NewVerifier(s.target, s.packer, s.cfg.Cooldown, s.cfg.MutationTimeout)
	err = NewSampler(s.cfg.FPS).Run(ctx, h, s.active.Load, func(ctx context.Context, frame *image.RGBA) error {
		payload, ok, err := s.decoder.Decode(frame)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		out := verifier.Check(ctx, payload)
		switch out.Kind {
		case OutcomeMismatch:
			s.mismatch(out.Scanned)
		case OutcomeFailed:
			s.setErr(out.Err)
			s.notifier.Notify(Notice{Kind: NoticeRetry, Target: s.target, Scanned: out.Scanned, Err: out.Err})
		case OutcomePacked:
			result = Result{Packed: true, Changed: out.Result.Changed, Order: &out.Result.Order}
			s.active.Store(false)
		}
		return nil
	})

	// release before reporting so the camera is free when callers react
	h.Release()

	switch {
	case result.Packed:
		kind := NoticePacked
		if !result.Changed {
			kind = NoticeAlreadyDone
		}
		s.notifier.Notify(Notice{Kind: kind, Target: s.target})
		s.logger.Info("item packed", zap.Bool("changed", result.Changed))
		return result, nil
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return s.cancelled()
	default:
		return s.fail(err)
	}
}

// Cancel stops sampling and waits until the camera is released. It is safe
// to call from any goroutine other than the one running the session, and
// before Run or after it ended.
func (s *Session) Cancel() {
	s.stopped.Store(true)
	s.active.Store(false)

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if s.started.Load() {
		<-s.done
	}
}

func (s *Session) mismatch(scanned string) {
	now := time.Now()
	if scanned == s.lastMismatch && now.Sub(s.lastMismatchAt) < s.cfg.Cooldown {
		return
	}
	s.lastMismatch, s.lastMismatchAt = scanned, now
	s.notifier.Notify(Notice{Kind: NoticeMismatch, Target: s.target, Scanned: scanned})
}

func (s *Session) cancelled() (Result, error) {
	s.notifier.Notify(Notice{Kind: NoticeCancelled, Target: s.target})
	return Result{Cancelled: true}, nil
}

func (s *Session) fail(err error) (Result, error) {
	s.setErr(err)
	s.notifier.Notify(Notice{Kind: NoticeError, Target: s.target, Err: err})
	s.logger.Warn("scan session failed", zap.Error(err))
	return Result{}, err
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
