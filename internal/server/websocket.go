package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/streamforge/comment-service/internal/bus"
	"github.com/streamforge/comment-service/internal/metrics"
	"github.com/streamforge/comment-service/internal/models"
)

// Upgrader is shared by all websocket endpoints.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, implement proper origin checking
		return true
	},
}

const writeWait = 10 * time.Second

// InboundMessage is the tagged shape accepted from socket clients. Anything
// not matching a known type is dropped.
type InboundMessage struct {
	Type          string `json:"type"`
	Content       string `json:"content"`
	ReplyToID     string `json:"reply_to_id,omitempty"`
	ReplyToUserID string `json:"reply_to_user_id,omitempty"`
}

// InboundTypeComment is the only inbound message type currently handled.
const InboundTypeComment = "comment"

// MessageHandler processes a decoded inbound message from a client.
type MessageHandler func(c *Client, msg InboundMessage)

// Client represents one websocket connection, scoped to a single room.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	log     *logrus.Logger
	handler MessageHandler

	userID  string
	videoID string
	scope   models.Scope

	// subs maps joined rooms to their local bus subscriptions; guarded by
	// hub.mu.
	subs map[string]*bus.Subscription

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, hub *Hub, log *logrus.Logger, userID, videoID string, scope models.Scope, handler MessageHandler) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		log:     log,
		handler: handler,
		userID:  userID,
		videoID: videoID,
		scope:   scope,
		subs:    make(map[string]*bus.Subscription),
		done:    make(chan struct{}),
	}
}

// UserID returns the connection's author id.
func (c *Client) UserID() string { return c.userID }

// VideoID returns the room the connection is scoped to.
func (c *Client) VideoID() string { return c.videoID }

// Scope returns the connection's cache partition tag.
func (c *Client) Scope() models.Scope { return c.scope }

// Run starts the read and write pumps and blocks until the connection
// closes.
func (c *Client) Run() {
	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	go c.writePump()
	c.readPump()
}

// Close removes the client from every room and shuts the connection down.
// Safe to call multiple times; after it returns no further payload is
// delivered.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.LeaveAll(c)
		close(c.done)
		c.conn.Close()
	})
}

// forward drains one room subscription into the send queue. A client whose
// send queue is full misses the payload rather than stalling the room.
func (c *Client) forward(sub *bus.Subscription) {
	for payload := range sub.C {
		select {
		case c.send <- payload:
		default:
			c.log.WithField("user", c.userID).Debug("dropping payload for slow client")
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).WithField("user", c.userID).Warn("websocket read error")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithField("user", c.userID).Debug("dropping undecodable socket message")
			continue
		}
		if msg.Type != InboundTypeComment || msg.Content == "" {
			c.log.WithFields(logrus.Fields{"user": c.userID, "type": msg.Type}).
				Debug("dropping socket message of unexpected shape")
			continue
		}

		c.handler(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.WithError(err).WithField("user", c.userID).Debug("websocket write error")
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
