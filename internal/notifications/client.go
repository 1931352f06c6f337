package notifications

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"campusfeed/internal/middleware"
	"campusfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pongs and close frames.
	maxMessageSize = 512

	sendBuffer = 64
)

// Envelope types the server sends besides EventNotificationCreated.
const (
	EventConnected            = "connected"
	EventNotificationsDropped = "notifications_dropped"
)

// Socket is the part of a websocket connection a Client drives.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one open notification stream. Frames queued with TrySend are
// written by WritePump; ReadPump only watches for the peer going away.
type Client struct {
	hub    *Hub
	socket Socket
	send   chan []byte
	userID uint

	// dropped is set when a frame was discarded and the peer has not yet
	// been told to re-fetch.
	dropped   atomic.Bool
	closeOnce sync.Once
}

func newClient(hub *Hub, socket Socket, userID uint) *Client {
	return &Client{
		hub:    hub,
		socket: socket,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}
}

// UserID is the recipient this stream belongs to.
func (c *Client) UserID() uint { return c.userID }

// Close stops WritePump, which then sends a close frame.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump reads until the connection fails, refreshing the read deadline on
// every pong, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				middleware.Logger.Debug("notification stream read failed", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings. It owns every write to
// the socket and closes it on return.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. When the buffer is full the
// message is dropped; the next frame that fits is preceded by a
// notifications_dropped envelope so the client re-fetches.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		}
	}()

	if c.dropped.CompareAndSwap(true, false) {
		select {
		case c.send <- dropNotice:
		default:
			c.dropped.Store(true)
		}
	}

	select {
	case c.send <- message:
	default:
		c.dropped.Store(true)
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
		middleware.Logger.Warn("notification buffer full, dropped message", "user_id", c.userID)
	}
}

// SendEnvelope marshals and queues one frame.
func (c *Client) SendEnvelope(kind string, payload any) error {
	body, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		return err
	}
	c.TrySend(body)
	return nil
}

var dropNotice = mustEnvelope(EventNotificationsDropped, map[string]string{"reason": "buffer_full"})

func mustEnvelope(kind string, payload any) []byte {
	body, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		panic(err)
	}
	return body
}
