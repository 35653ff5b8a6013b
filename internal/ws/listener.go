package ws

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/avgrelay/relay/internal/config"
	"github.com/avgrelay/relay/internal/registry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrQueueFull is returned by Enqueue when a listener has fallen too far
// behind to accept another broadcast.
var ErrQueueFull = errors.New("listener send queue full")

// listener is a registered listener stream. Broadcasts are queued on send
// and written by writePump, so a slow peer only ever stalls its own
// goroutine.
type listener struct {
	id   uuid.UUID
	conn *websocket.Conn
	reg  *registry.Registry
	send chan []byte

	writeTimeout time.Duration
	pingInterval time.Duration

	closeOnce sync.Once
}

func newListener(id uuid.UUID, conn *websocket.Conn, reg *registry.Registry, cfg config.RelayConfig) *listener {
	return &listener{
		id:           id,
		conn:         conn,
		reg:          reg,
		send:         make(chan []byte, cfg.ListenerBuffer),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
	}
}

// Enqueue is called by the registry with its lock held, never after Close.
func (l *listener) Enqueue(msg []byte) error {
	select {
	case l.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (l *listener) Close() {
	l.closeOnce.Do(func() {
		close(l.send)
	})
}

func (l *listener) writePump() {
	defer l.conn.Close()

	var ping <-chan time.Time
	if l.pingInterval > 0 {
		ticker := time.NewTicker(l.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg, ok := <-l.send:
			l.setWriteDeadline()
			if !ok {
				l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws listener %s: write error: %v", l.id, err)
				l.reg.DropListener(l)
				return
			}
		case <-ping:
			l.setWriteDeadline()
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("ws listener %s: ping error: %v", l.id, err)
				l.reg.DropListener(l)
				return
			}
		}
	}
}

func (l *listener) setWriteDeadline() {
	if l.writeTimeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
}
