package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/broadcast"
	"github.com/cenkalti/backoff/v4"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// liveServer upgrades every request and hands the connection to the test
type liveServer struct {
	srv   *httptest.Server
	conns chan net.Conn
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	ls := &liveServer{conns: make(chan net.Conn, 8)}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		ls.conns <- conn
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *liveServer) url() string {
	return "ws" + strings.TrimPrefix(ls.srv.URL, "http")
}

func (ls *liveServer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-ls.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func send(t *testing.T, conn net.Conn, msg broadcast.Message) {
	t.Helper()
	payload, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, wsutil.WriteServerText(conn, payload))
}

// recordingInvalidator counts invalidations
type recordingInvalidator struct {
	mu     sync.Mutex
	orders []uuid.UUID
	lists  int
	all    int
}

func (r *recordingInvalidator) InvalidateOrder(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	r.orders = append(r.orders, id)
	r.mu.Unlock()
}

func (r *recordingInvalidator) InvalidateOrderList(context.Context) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
}

func (r *recordingInvalidator) InvalidateAll(context.Context) {
	r.mu.Lock()
	r.all++
	r.mu.Unlock()
}

func (r *recordingInvalidator) snapshot() ([]uuid.UUID, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.orders...), r.lists, r.all
}

// fakeFeed serves unread notifications and records what gets marked read
type fakeFeed struct {
	mu     sync.Mutex
	unread []Notification
	marked []uuid.UUID
	polls  int
}

func (f *fakeFeed) ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return append([]Notification(nil), f.unread...), nil
}

func (f *fakeFeed) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	kept := f.unread[:0]
	for _, n := range f.unread {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.unread = kept
	return nil
}

func (f *fakeFeed) stats() (int, []uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls, append([]uuid.UUID(nil), f.marked...)
}

type stateLog struct {
	mu     sync.Mutex
	states []ConnState
	errs   []error
}

func (s *stateLog) record(state ConnState, err error) {
	s.mu.Lock()
	s.states = append(s.states, state)
	if err != nil {
		s.errs = append(s.errs, err)
	}
	s.mu.Unlock()
}

func (s *stateLog) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func startLive(t *testing.T, cfg LiveConfig, feed NotificationFeed, inv Invalidator) (*LiveClient, context.CancelFunc, <-chan error) {
	t.Helper()
	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }
	}
	lc := NewLiveClient(cfg, feed, inv, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- lc.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(3 * time.Second):
			t.Error("live client did not stop")
		}
	})
	return lc, cancel, done
}

func TestLiveClient_InvalidatesOnEvents(t *testing.T) {
	ls := newLiveServer(t)
	inv := &recordingInvalidator{}
	events := make(chan broadcast.Message, 4)
	lc, _, _ := startLive(t, LiveConfig{URL: ls.url(), OnEvent: func(m broadcast.Message) { events <- m }}, &fakeFeed{}, inv)

	conn := ls.accept(t)
	require.Eventually(t, func() bool { return lc.State() == StateConnected }, time.Second, 5*time.Millisecond)

	created, updated := uuid.New(), uuid.New()
	send(t, conn, broadcast.Message{Type: "price_changed", OrderID: uuid.New()})
	send(t, conn, broadcast.Message{Type: broadcast.TypeNewOrder, OrderID: created})
	send(t, conn, broadcast.Message{Type: broadcast.TypeOrderUpdated, OrderID: updated})

	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatal("event not handled")
		}
	}

	orders, lists, all := inv.snapshot()
	assert.Equal(t, []uuid.UUID{created, updated}, orders, "unknown types are ignored")
	assert.Equal(t, 1, lists)
	assert.Zero(t, all)
}

func TestLiveClient_ReplaysUnreadOnConnect(t *testing.T) {
	ls := newLiveServer(t)
	orderID := uuid.New()
	n1, n2 := uuid.New(), uuid.New()
	feed := &fakeFeed{unread: []Notification{
		{ID: n1, Type: "order_updated", OrderID: orderID},
		{ID: n2, Type: "new_order", OrderID: orderID},
	}}
	inv := &recordingInvalidator{}
	startLive(t, LiveConfig{URL: ls.url()}, feed, inv)
	ls.accept(t)

	require.Eventually(t, func() bool {
		_, marked := feed.stats()
		return len(marked) == 2
	}, 2*time.Second, 5*time.Millisecond)

	orders, lists, all := inv.snapshot()
	assert.Equal(t, []uuid.UUID{orderID}, orders, "one invalidation per order")
	assert.Equal(t, 1, lists)
	assert.Zero(t, all, "first connect has nothing cached to distrust")
	_, marked := feed.stats()
	assert.ElementsMatch(t, []uuid.UUID{n1, n2}, marked)
}

func TestLiveClient_ReconnectsAndReplays(t *testing.T) {
	ls := newLiveServer(t)
	feed := &fakeFeed{}
	inv := &recordingInvalidator{}
	states := &stateLog{}
	lc, _, _ := startLive(t, LiveConfig{URL: ls.url(), OnState: states.record}, feed, inv)

	first := ls.accept(t)
	require.Eventually(t, func() bool { return lc.State() == StateConnected }, time.Second, 5*time.Millisecond)

	// an event emitted while the client is offline is only in the feed
	missed := uuid.New()
	feed.mu.Lock()
	feed.unread = append(feed.unread, Notification{ID: uuid.New(), Type: "order_updated", OrderID: missed})
	feed.mu.Unlock()

	require.NoError(t, first.Close())
	second := ls.accept(t)
	require.Eventually(t, func() bool {
		_, _, all := inv.snapshot()
		return all == 1 && lc.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		orders, _, _ := inv.snapshot()
		return len(orders) == 1 && orders[0] == missed
	}, 2*time.Second, 5*time.Millisecond)

	polls, _ := feed.stats()
	assert.Equal(t, 2, polls)

	errs := states.errors()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrChannelDisconnected)

	// the new connection carries events
	updated := uuid.New()
	send(t, second, broadcast.Message{Type: broadcast.TypeOrderUpdated, OrderID: updated})
	require.Eventually(t, func() bool {
		orders, _, _ := inv.snapshot()
		return len(orders) == 2 && orders[1] == updated
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLiveClient_ReconnectsWhenServerGoesSilent(t *testing.T) {
	ls := newLiveServer(t)
	inv := &recordingInvalidator{}
	states := &stateLog{}
	lc, _, _ := startLive(t, LiveConfig{URL: ls.url(), OnState: states.record, ReadTimeout: 100 * time.Millisecond}, &fakeFeed{}, inv)

	// the first connection stays open but never sends a frame
	ls.accept(t)
	ls.accept(t)

	require.Eventually(t, func() bool {
		_, _, all := inv.snapshot()
		return all >= 1 && lc.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	errs := states.errors()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrChannelDisconnected)
}

func TestLiveClient_ServerPingsKeepConnectionAlive(t *testing.T) {
	ls := newLiveServer(t)
	lc, _, _ := startLive(t, LiveConfig{URL: ls.url(), ReadTimeout: 150 * time.Millisecond}, &fakeFeed{}, &recordingInvalidator{})

	conn := ls.accept(t)
	require.Eventually(t, func() bool { return lc.State() == StateConnected }, time.Second, 5*time.Millisecond)

	ticker := time.NewTicker(30 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case <-ticker.C:
			require.NoError(t, wsutil.WriteServerMessage(conn, ws.OpPing, nil))
		case <-deadline:
			done = true
		}
	}

	select {
	case <-ls.conns:
		t.Fatal("client reconnected while the server was pinging")
	default:
	}
	assert.Equal(t, StateConnected, lc.State())
}

func TestLiveClient_StopsOnCancel(t *testing.T) {
	ls := newLiveServer(t)
	lc, cancel, done := startLive(t, LiveConfig{URL: ls.url()}, &fakeFeed{}, &recordingInvalidator{})
	ls.accept(t)
	require.Eventually(t, func() bool { return lc.State() == StateConnected }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateDisconnected, lc.State())
}

func TestLiveURL(t *testing.T) {
	api, err := NewAPI("https://orders.example.com/base/", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "wss://orders.example.com/base/ws", LiveURL(api.BaseURL(), "/ws"))

	api, err = NewAPI("http://localhost:8080?x=1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", LiveURL(api.BaseURL(), "/ws"))
}
