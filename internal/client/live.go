package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/broadcast"
	"github.com/cenkalti/backoff/v4"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationFeed is the part of the REST API used to replay missed events
type NotificationFeed interface {
	ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}

// ConnState is the live channel connection state
type ConnState int

// Connection states
const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// LiveConfig configures a LiveClient
type LiveConfig struct {
	// URL of the live channel, ws:// or wss://
	URL string
	// Backoff builds the reconnect policy. Defaults to exponential backoff
	// capped at 30s that never gives up.
	Backoff func() backoff.BackOff
	// OnState is told about connection changes. err is
	// ErrChannelDisconnected wrapped around the cause when disconnected.
	OnState func(state ConnState, err error)
	// OnEvent sees every decoded event after invalidation
	OnEvent func(broadcast.Message)
	// ReadTimeout drops the connection when no frame, server pings
	// included, arrives for this long. Defaults to DefaultLiveReadTimeout.
	ReadTimeout time.Duration
}

// DefaultLiveReadTimeout is twice the server's default heartbeat interval
const DefaultLiveReadTimeout = 60 * time.Second

// LiveClient listens on the live channel and turns events into cache
// invalidations. After every (re)connect it replays unread notifications
// so nothing emitted while offline is missed.
type LiveClient struct {
	cfg         LiveConfig
	feed        NotificationFeed
	invalidator Invalidator
	logger      *zap.Logger
	dialer      ws.Dialer

	mu    sync.Mutex
	state ConnState
}

// NewLiveClient creates a LiveClient
func NewLiveClient(cfg LiveConfig, feed NotificationFeed, invalidator Invalidator, logger *zap.Logger) *LiveClient {
	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultLiveReadTimeout
	}
	return &LiveClient{
		cfg:         cfg,
		feed:        feed,
		invalidator: invalidator,
		logger:      logger.With(zap.String("component", "live_client")),
		dialer:      ws.Dialer{Timeout: 10 * time.Second},
		state:       StateDisconnected,
	}
}

// LiveURL derives the live channel URL from a REST base URL
func LiveURL(base *url.URL, path string) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	return u.String()
}

// State returns the current connection state
func (c *LiveClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects and listens until ctx ends, reconnecting with backoff
func (c *LiveClient) Run(ctx context.Context) error {
	b := backoff.WithContext(c.cfg.Backoff(), ctx)
	first := true

	operation := func() error {
		c.setState(StateConnecting, nil)

		conn, br, _, err := c.dialer.Dial(ctx, c.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.setState(StateDisconnected, fmt.Errorf("%w: %v", ErrChannelDisconnected, err))
			return err
		}

		if br != nil {
			// frames that arrived with the handshake are already buffered
			conn = &bufferedConn{Conn: conn, r: br}
		}

		c.setState(StateConnected, nil)
		b.Reset()

		// a reconnect may have missed events for orders we already hold
		if !first {
			c.invalidator.InvalidateAll(ctx)
		}
		first = false
		c.replay(ctx)

		err = c.listen(ctx, conn)
		if ctx.Err() != nil {
			c.setState(StateDisconnected, nil)
			return backoff.Permanent(ctx.Err())
		}
		c.setState(StateDisconnected, fmt.Errorf("%w: %v", ErrChannelDisconnected, err))
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("live channel down, retrying", zap.Error(err), zap.Duration("retry_in", wait))
	}

	err := backoff.RetryNotify(operation, b, notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// replay invalidates orders named by unread notifications and marks them
// read. Failures are logged; the live stream still works without replay.
func (c *LiveClient) replay(ctx context.Context) {
	items, err := c.feed.ListNotifications(ctx, true)
	if err != nil {
		c.logger.Warn("notification replay failed", zap.Error(err))
		return
	}

	seen := make(map[uuid.UUID]struct{})
	for _, n := range items {
		if _, ok := seen[n.OrderID]; !ok && n.OrderID != uuid.Nil {
			seen[n.OrderID] = struct{}{}
			c.invalidator.InvalidateOrder(ctx, n.OrderID)
		}
		if n.Type == string(broadcast.TypeNewOrder) {
			c.invalidator.InvalidateOrderList(ctx)
		}
		if err := c.feed.MarkNotificationRead(ctx, n.ID); err != nil {
			c.logger.Warn("mark notification read failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
		}
	}
	if len(items) > 0 {
		c.logger.Info("replayed notifications", zap.Int("count", len(items)))
	}
}

func (c *LiveClient) listen(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	controlHandler := wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	rd := wsutil.Reader{
		Source:         conn,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, &rd); err != nil {
				return err
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(&rd)
		if err != nil {
			return err
		}
		msg, err := broadcast.DecodeMessage(data)
		if err != nil {
			c.logger.Warn("dropping undecodable live message", zap.Error(err))
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *LiveClient) handle(ctx context.Context, msg broadcast.Message) {
	switch msg.Type {
	case broadcast.TypeNewOrder:
		c.invalidator.InvalidateOrderList(ctx)
		c.invalidator.InvalidateOrder(ctx, msg.OrderID)
	case broadcast.TypeOrderUpdated:
		c.invalidator.InvalidateOrder(ctx, msg.OrderID)
	default:
		c.logger.Debug("ignoring live message", zap.String("type", string(msg.Type)))
		return
	}
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(msg)
	}
}

type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (c *LiveClient) setState(state ConnState, err error) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if changed && state == StateConnected {
		c.logger.Info("live channel connected", zap.String("url", c.cfg.URL))
	}
	if c.cfg.OnState != nil && (changed || err != nil) {
		c.cfg.OnState(state, err)
	}
}
