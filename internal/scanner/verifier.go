package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"github.com/google/uuid"
)

// DefaultCooldown absorbs repeated reads of one physical code
const DefaultCooldown = 2 * time.Second

// DefaultMutationTimeout bounds one pack-item call
const DefaultMutationTimeout = 5 * time.Second

// Target is the order item a session scans for
type Target struct {
	OrderID     uuid.UUID
	OrderNumber string
	ProductID   int64
	ProductName string
	SKU         string
}

// Packer performs the fulfillment mutation
type Packer interface {
	PackItem(ctx context.Context, orderID uuid.UUID, productID int64) (*client.PackResult, error)
}

// OutcomeKind classifies one checked payload
type OutcomeKind int

// Outcome kinds
const (
	OutcomeIgnored OutcomeKind = iota
	OutcomeMismatch
	OutcomePacked
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomePacked:
		return "packed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the verifier's verdict on one payload
type Outcome struct {
	Kind     OutcomeKind
	Scanned  string
	Expected string
	Result   *client.PackResult
	Err      error
}

// Verifier compares payloads against the target SKU and packs on a match
type Verifier struct {
	target   Target
	packer   Packer
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	lastAccepted time.Time
}

// NewVerifier creates a Verifier for target
func NewVerifier(target Target, packer Packer, cooldown, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &Verifier{
		target:   target,
		packer:   packer,
		cooldown: cooldown,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Check judges one non-empty payload. Payloads within the cooldown of the
// last accepted scan are ignored, whatever they contain. The compare is
// verbatim.
func (v *Verifier) Check(ctx context.Context, payload string) Outcome {
	now := v.now()
	if !v.lastAccepted.IsZero() && now.Sub(v.lastAccepted) < v.cooldown {
		return Outcome{Kind: OutcomeIgnored, Scanned: payload, Expected: v.target.SKU}
	}

	if payload != v.target.SKU {
		return Outcome{Kind: OutcomeMismatch, Scanned: payload, Expected: v.target.SKU}
	}

	v.lastAccepted = now

	mctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	result, err := v.packer.PackItem(mctx, v.target.OrderID, v.target.ProductID)
	if err != nil {
		// the operator may rescan right away
		v.lastAccepted = time.Time{}
		return Outcome{
			Kind:     OutcomeFailed,
			Scanned:  payload,
			Expected: v.target.SKU,
			Err:      fmt.Errorf("%w: %w", ErrMutationFailed, err),
		}
	}

	return Outcome{Kind: OutcomePacked, Scanned: payload, Expected: v.target.SKU, Result: result}
}
