package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/tacband/skirmish/pkg/stream"
)

const (
	outboxSize  = 10_000
	ackChSize   = 16
	maxRedials  = 10
	maxBackoff  = 30 * time.Second
	writeWait   = 10 * time.Second
	ackTimeout  = 10 * time.Second
	dialTimeout = 10 * time.Second
)

// session owns the socket for one replay stream. A single pump goroutine
// performs all writes and handles redials inline; a reader per connection
// feeds server acks back through the acks channel.
type session struct {
	logger *slog.Logger

	outbox chan []byte
	acks   chan stream.AckMessage
	done   chan struct{} // closed on shutdown

	mu       sync.Mutex
	conn     *ws.Conn
	greeting []byte // start_match envelope, replayed after a redial
	closed   bool
	broken   bool // redials exhausted, messages are dropped from here on

	dropped atomic.Uint64

	wsURL string
	token string
}

func newSession(logger *slog.Logger) *session {
	return &session{
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan stream.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// open dials the spectator server and starts the pump. The first dial is
// synchronous so a bad URL or refused connection fails Init immediately.
func (s *session) open(rawURL, token string) error {
	s.wsURL = rawURL
	s.token = token

	conn, err := s.dialOnce()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.reader(conn)
	go s.pump()

	return nil
}

// dialOnce performs a single dial, authenticating with a bearer token header.
func (s *session) dialOnce() (*ws.Conn, error) {
	dialer := *ws.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := dialer.Dial(s.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", s.wsURL, err)
	}
	return conn, nil
}

// pump drains the outbox and writes to the socket. On a write failure it
// redials in place; writes resume only once the connection is back. If the
// redial budget runs out the session turns broken and drains silently.
func (s *session) pump() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbox:
			for !s.write(data) {
				if !s.redial() {
					s.markBroken()
					return
				}
			}
		}
	}
}

// write pushes one frame with a deadline. False means the connection is gone.
func (s *session) write(data []byte) bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return false
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Warn("replay stream deadline error", "error", err)
		return false
	}
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		s.logger.Warn("replay stream write error", "error", err)
		return false
	}
	return true
}

// reader decodes server frames for one connection and forwards acks. It
// exits when the connection dies; the pump notices on its next write.
func (s *session) reader(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("replay stream read error", "error", err)
			}
			return
		}

		var ack stream.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			s.logger.Debug("replay stream ignoring frame", "raw", string(message))
			continue
		}

		select {
		case s.acks <- ack:
		default:
			s.logger.Debug("ack channel full, dropping", "for", ack.For)
		}
	}
}

// redial re-establishes the connection with exponential backoff, replays
// the match greeting and restarts the reader. False means the attempt
// budget is exhausted or the session shut down.
func (s *session) redial() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-s.done:
			return false
		case <-time.After(backoff):
		}

		s.logger.Info("redialing replay stream", "attempt", attempt)
		conn, err := s.dialOnce()
		if err != nil {
			s.logger.Warn("replay stream redial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		greeting := s.greeting
		s.mu.Unlock()

		// The server needs to know which match resumed streaming.
		if greeting != nil && !s.write(greeting) {
			_ = conn.Close()
			continue
		}

		s.logger.Info("replay stream reconnected", "attempt", attempt)
		go s.reader(conn)
		return true
	}

	s.logger.Error("replay stream gave up redialing", "attempts", maxRedials)
	return false
}

// markBroken stops accepting messages; post counts them as dropped instead.
func (s *session) markBroken() {
	s.mu.Lock()
	s.broken = true
	s.mu.Unlock()
}

// setGreeting stores the start_match envelope replayed after a redial.
// nil clears it at end of match.
func (s *session) setGreeting(data []byte) {
	s.mu.Lock()
	s.greeting = data
	s.mu.Unlock()
}

// post queues a frame for the pump. Frames are dropped, and counted, when
// the outbox is full or the session is broken.
func (s *session) post(data []byte) {
	s.mu.Lock()
	broken := s.broken || s.closed
	s.mu.Unlock()
	if broken {
		s.dropped.Add(1)
		return
	}

	select {
	case s.outbox <- data:
	default:
		s.dropped.Add(1)
		s.logger.Warn("replay stream outbox full, dropping frame")
	}
}

// exchange posts a frame and blocks until the server acks it or the
// timeout expires.
func (s *session) exchange(data []byte, ackFor string, timeout time.Duration) error {
	s.post(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-s.acks:
			if ack.For == ackFor {
				return nil
			}
			// Someone else's ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-s.done:
			return fmt.Errorf("session closed while waiting for ack of %q", ackFor)
		}
	}
}

// shutdown sends a close frame and stops the pump. Dropped frames, if any,
// are reported once here.
func (s *session) shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("replay stream dropped frames", "count", n)
	}

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
