package client

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
)

// Stream identifies which relay route a client is attached to.
type Stream int

const (
	StreamListen Stream = iota
	StreamSend
)

func (s Stream) String() string {
	if s == StreamSend {
		return "send"
	}
	return "listen"
}

// StreamClient manages one WebSocket connection to the relay.
type StreamClient struct {
	url    string
	stream Stream

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
}

// NewStreamClient creates a client for the given route URL. Nothing is
// dialled until the command returned by Connect runs.
func NewStreamClient(url string, stream Stream) *StreamClient {
	return &StreamClient{url: url, stream: stream}
}

// --- Bubble Tea messages ---

// ConnectedMsg is sent when a stream connects.
type ConnectedMsg struct{ Stream Stream }

// DisconnectedMsg is sent when a stream drops.
type DisconnectedMsg struct {
	Stream Stream
	Err    error
}

// AverageMsg delivers one broadcast average.
type AverageMsg struct{ Value int64 }

// SentMsg confirms a value was written to the send stream.
type SentMsg struct{ Value int64 }

// SendFailedMsg reports a failed write on the send stream.
type SendFailedMsg struct{ Err error }

// Connect returns a Bubble Tea command that dials the relay, retrying with
// exponential backoff until it succeeds or ctx is cancelled.
func (c *StreamClient) Connect(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err == nil {
				c.mu.Lock()
				c.conn = conn
				c.mu.Unlock()
				return ConnectedMsg{Stream: c.stream}
			}

			log.Printf("ws %s dial error: %v (retry in %v)", c.stream, err, delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// ReadLoop returns a Bubble Tea command that blocks until the next average
// arrives or the stream drops. It should be started after ConnectedMsg and
// restarted after every AverageMsg. On the send stream it only ever returns
// DisconnectedMsg, since the relay writes nothing to senders.
func (c *StreamClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return DisconnectedMsg{Stream: c.stream, Err: fmt.Errorf("no connection")}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				if ctx.Err() != nil {
					return nil
				}
				return DisconnectedMsg{Stream: c.stream, Err: err}
			}

			value, err := strconv.ParseInt(string(data), 10, 64)
			if err != nil {
				log.Printf("ws %s: ignoring non-numeric message %q", c.stream, data)
				continue
			}
			return AverageMsg{Value: value}
		}
	}
}

// Send returns a command that writes value on the stream.
func (c *StreamClient) Send(value int64) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return SendFailedMsg{Err: fmt.Errorf("not connected")}
		}

		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(strconv.FormatInt(value, 10))); err != nil {
			return SendFailedMsg{Err: err}
		}
		return SentMsg{Value: value}
	}
}

// Close drops the current connection, if any.
func (c *StreamClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
