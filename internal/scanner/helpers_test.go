package scanner

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// frameSource is a fake camera that cycles through fixed frames and counts
// opens and closes
type frameSource struct {
	name    string
	facing  Facing
	frames  []image.Image
	openErr error

	opens  atomic.Int32
	closes atomic.Int32
}

func newFrameSource(t *testing.T, payloads ...string) *frameSource {
	t.Helper()
	src := &frameSource{name: "fake", facing: FacingEnvironment}
	for _, p := range payloads {
		if p == "" {
			src.frames = append(src.frames, image.NewGray(image.Rect(0, 0, 64, 64)))
			continue
		}
		img, err := RenderQR(p, 160)
		require.NoError(t, err)
		src.frames = append(src.frames, img)
	}
	return src
}

func (s *frameSource) Name() string   { return s.name }
func (s *frameSource) Facing() Facing { return s.facing }

func (s *frameSource) Open(Constraints) (Device, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens.Add(1)
	return &frameDevice{src: s}, nil
}

// open reports whether a stream is currently open
func (s *frameSource) open() bool {
	return s.opens.Load() > s.closes.Load()
}

type frameDevice struct {
	src    *frameSource
	next   int
	closed atomic.Bool
}

func (d *frameDevice) Frame(ctx context.Context) (image.Image, error) {
	if d.closed.Load() {
		return nil, ErrHandleReleased
	}
	if len(d.src.frames) == 0 {
		return nil, ErrNoFrame
	}
	img := d.src.frames[d.next%len(d.src.frames)]
	d.next++
	return img, nil
}

func (d *frameDevice) Close() error {
	if d.closed.CompareAndSwap(false, true) {
		d.src.closes.Add(1)
	}
	return nil
}

// fakePacker keeps per product packed state like the server does
type fakePacker struct {
	mu     sync.Mutex
	calls  []int64
	packed map[int64]bool
	order  client.Order
	fail   int
	err    error
}

func newFakePacker(order client.Order) *fakePacker {
	return &fakePacker{order: order, packed: make(map[int64]bool)}
}

func (p *fakePacker) PackItem(ctx context.Context, orderID uuid.UUID, productID int64) (*client.PackResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, productID)
	if p.fail > 0 {
		p.fail--
		return nil, p.err
	}

	changed := !p.packed[productID]
	p.packed[productID] = true

	o := p.order
	o.Items = append([]client.OrderItem(nil), p.order.Items...)
	for i := range o.Items {
		o.Items[i].Fulfilled = p.packed[o.Items[i].ProductID]
	}
	return &client.PackResult{Order: o, Changed: changed}, nil
}

func (p *fakePacker) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePacker) isPacked(productID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.packed[productID]
}

// noticeLog records notices for assertions
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) count(kind NoticeKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, notice := range l.notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func (l *noticeLog) first(kind NoticeKind) (Notice, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, notice := range l.notices {
		if notice.Kind == kind {
			return notice, true
		}
	}
	return Notice{}, false
}

func testOrder() client.Order {
	return client.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260101-ABCDEF",
		Status:      "processing",
		Items: []client.OrderItem{
			{ProductID: 1, ProductName: "Item A", SKU: "SKU-1"},
			{ProductID: 2, ProductName: "Item B", SKU: "SKU-2"},
		},
	}
}

func fastConfig() SessionConfig {
	return SessionConfig{FPS: 200, Cooldown: DefaultCooldown, MutationTimeout: time.Second}
}

type packerFunc func(ctx context.Context) error

func (f packerFunc) PackItem(ctx context.Context, orderID uuid.UUID, productID int64) (*client.PackResult, error) {
	if err := f(ctx); err != nil {
		return nil, err
	}
	return &client.PackResult{Changed: true}, nil
}
