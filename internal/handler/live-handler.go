package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"yolda/internal/dispatch"
)

const (
	feedWriteWait     = 10 * time.Second
	feedPongWait      = 60 * time.Second
	feedPingPeriod    = (feedPongWait * 9) / 10
	feedClientSendBuf = 64
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveFeed fans dispatch events out to connected admin panel clients.
// Publishing never blocks: a client that cannot keep up is dropped.
type LiveFeed struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewLiveFeed(logger *zap.Logger) *LiveFeed {
	return &LiveFeed{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// Publish implements dispatch.EventPublisher
func (f *LiveFeed) Publish(event dispatch.OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("Failed to marshal dispatch event", zap.Error(err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		select {
		case client.send <- data:
		default:
			// slow/dead client -> drop it
			close(client.send)
			delete(f.clients, client)
		}
	}
}

func (f *LiveFeed) register(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[client] = struct{}{}
}

func (f *LiveFeed) unregister(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
}

// handleOrderFeedWS upgrades the connection and streams dispatch events.
// The shared admin token rides in the query string because browser
// websocket clients cannot set headers.
func (h *Handler) handleOrderFeedWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != h.cfg.AdminToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []byte, feedClientSendBuf),
	}

	h.feed.register(client)
	h.logger.Info("Order feed client connected")

	go client.writePump()
	go client.readPump(h.feed)
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process pongs and notice the client going away.
func (c *feedClient) readPump(feed *LiveFeed) {
	defer func() {
		feed.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
