package broadcast

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session is one live connection. Only writeLoop writes data frames, so
// messages leave in the order they were queued.
type session struct {
	id           string
	conn         net.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	wmu          sync.Mutex
	writeTimeout time.Duration
	heartbeat    time.Duration
	logger       *zap.Logger
}

func newSession(conn net.Conn, cfg HubConfig, logger *zap.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, cfg.ClientBuffer),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		heartbeat:    cfg.HeartbeatInterval,
		logger:       logger.With(zap.String("session_id", id), zap.String("remote_addr", conn.RemoteAddr().String())),
	}
}

// enqueue queues payload without blocking. It reports false when the queue is
// full. A nil payload closes the session after everything queued before it.
func (s *session) enqueue(payload []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) write(op ws.OpCode, payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return wsutil.WriteServerMessage(s.conn, op, payload)
}

func (s *session) writeLoop() {
	defer s.close()

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if payload == nil {
				_ = s.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "resync"))
				return
			}
			if err := s.write(ws.OpText, payload); err != nil {
				s.logger.Debug("live write failed", zap.Error(err))
				return
			}
		case <-heartbeat:
			if err := s.write(ws.OpPing, nil); err != nil {
				s.logger.Debug("live ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop answers pings, honours close frames and discards client data.
// Without a frame for two heartbeat intervals the peer is considered gone.
func (s *session) readLoop() {
	defer s.close()

	for {
		if s.heartbeat > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.heartbeat))
		}

		hdr, err := ws.ReadHeader(s.conn)
		if err != nil {
			return
		}

		if !hdr.OpCode.IsControl() {
			if _, err := io.CopyN(io.Discard, s.conn, hdr.Length); err != nil {
				return
			}
			continue
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return
		}
		if hdr.Masked {
			ws.Cipher(payload, hdr.Mask, 0)
		}

		switch hdr.OpCode {
		case ws.OpPing:
			if err := s.write(ws.OpPong, payload); err != nil {
				return
			}
		case ws.OpClose:
			_ = s.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
			return
		}
	}
}
