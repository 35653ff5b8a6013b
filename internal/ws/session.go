package ws

import (
	"log"
	"time"

	"github.com/avgrelay/relay/internal/metrics"
	"github.com/avgrelay/relay/internal/registry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// dispatch runs the session for role until the stream terminates. Streams
// with RoleUnknown are drained without touching the registry.
func (s *Server) dispatch(conn *websocket.Conn, role Role, remote string) {
	id := uuid.New()
	s.metrics.StreamAccepted(role.String())
	conn.SetReadLimit(s.config.Relay.MaxMessageBytes)

	switch role {
	case RoleSender:
		s.runSender(id, conn, remote)
	case RoleListener:
		s.runListener(id, conn, remote)
	default:
		s.drainUnrouted(id, conn, remote)
	}
}

// runSender reads values until the stream ends, then withdraws the sender's
// contribution with a single final broadcast.
func (s *Server) runSender(id uuid.UUID, conn *websocket.Conn, remote string) {
	log.Printf("ws sender %s connected: %s", id, remote)
	defer func() {
		avg := s.registry.Retire(id)
		conn.Close()
		log.Printf("ws sender %s disconnected: %s (average is now: %d)", id, remote, avg)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		value, err := registry.ParseValue(data)
		if err != nil {
			s.metrics.SenderMessage(metrics.ResultMalformed)
			log.Printf("ws sender %s: discarding malformed value %q", id, truncate(data, 32))
			continue
		}

		s.metrics.SenderMessage(metrics.ResultAccepted)
		avg := s.registry.Report(id, value)
		if s.config.Log.Verbose {
			log.Printf("ws sender %s reported %d, average is now: %d", id, value, avg)
		}
	}
}

// runListener registers the stream before it starts idling and discards
// whatever the peer sends.
func (s *Server) runListener(id uuid.UUID, conn *websocket.Conn, remote string) {
	l := newListener(id, conn, s.registry, s.config.Relay)
	s.registry.RegisterListener(l)
	go l.writePump()

	log.Printf("ws listener %s connected: %s", id, remote)
	defer func() {
		s.registry.DeregisterListener(l)
		log.Printf("ws listener %s disconnected: %s", id, remote)
	}()

	if s.config.Relay.PingInterval > 0 {
		pongTimeout := s.config.Relay.PongTimeout
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) drainUnrouted(id uuid.UUID, conn *websocket.Conn, remote string) {
	defer conn.Close()
	if s.config.Log.Verbose {
		log.Printf("ws stream %s on unrouted path accepted: %s", id, remote)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
