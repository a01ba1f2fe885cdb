package broadcast

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"
)

// HubConfig tunes live sessions
type HubConfig struct {
	ClientBuffer      int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	MaxClients        int // 0 means unlimited
}

// Hub owns the live sessions of this instance and publishes through a Relay
type Hub struct {
	cfg     HubConfig
	relay   Relay
	metrics *Metrics
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewHub creates a hub. Start must be called before Broadcast.
func NewHub(cfg HubConfig, relay Relay, metrics *Metrics, logger *zap.Logger) *Hub {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 64
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		cfg:      cfg,
		relay:    relay,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// Start wires the relay's deliveries into this hub's sessions
func (h *Hub) Start(ctx context.Context) error {
	return h.relay.Start(ctx, h.deliver)
}

// Broadcast publishes msg to every session of every instance. When the relay
// fails, local sessions still get msg and are then closed so their clients
// reconnect and resync.
func (h *Hub) Broadcast(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := h.relay.Publish(ctx, payload); err != nil {
		h.metrics.relayFailures.Inc()
		h.logger.Warn("relay publish failed, resyncing local sessions",
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		h.deliver(payload)
		h.resync()
		return err
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket live session
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxClients > 0 && h.SessionCount() >= h.cfg.MaxClients {
		http.Error(w, "too many live sessions", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Debug("live upgrade failed", zap.Error(err))
		return
	}

	if h.attach(conn) == nil {
		_ = conn.Close()
	}
}

// attach registers conn and starts its loops. It returns nil after Shutdown.
func (h *Hub) attach(conn net.Conn) *session {
	s := newSession(conn, h.cfg, h.logger)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.activeSessions.Inc()
	s.logger.Debug("live session opened")

	go func() {
		defer h.wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer h.wg.Done()
		s.readLoop()
		h.detach(s)
	}()

	return s
}

func (h *Hub) detach(s *session) {
	s.close()

	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()

	if ok {
		h.metrics.activeSessions.Dec()
		s.logger.Debug("live session closed")
	}
}

// deliver queues payload on every local session. A session whose queue is
// full is disconnected.
func (h *Hub) deliver(payload []byte) {
	msgType := "unknown"
	if m, err := DecodeMessage(payload); err == nil && m.Type != "" {
		msgType = string(m.Type)
	}
	h.metrics.messagesBroadcast.WithLabelValues(msgType).Inc()

	var slow []*session
	h.mu.RLock()
	for s := range h.sessions {
		if !s.enqueue(payload) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.metrics.slowDisconnects.Inc()
		s.logger.Warn("live session queue full, disconnecting")
		h.detach(s)
	}
}

// resync asks every local session to close once its queue is flushed.
// Sessions that cannot take the request are dropped immediately.
func (h *Hub) resync() {
	var stuck []*session
	h.mu.RLock()
	for s := range h.sessions {
		if !s.enqueue(nil) {
			stuck = append(stuck, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stuck {
		h.detach(s)
	}
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every session and the relay, then waits for session
// goroutines until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.detach(s)
	}
	relayErr := h.relay.Close()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return relayErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
