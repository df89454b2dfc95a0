package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16

	// lagWarningInterval rate-limits "subscriber fell behind" warnings per client
	lagWarningInterval = 5 * time.Second
)

// wsClient is one live subscriber. The hub subscription is owned by the
// client and dropped with it.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	sub    *broadcast.Subscription
	send   chan []byte
	logger *zap.Logger

	// initial is the snapshot queued on connect. A first event carrying the
	// same payload was published between Subscribe and the state read.
	initial []byte

	mu             sync.Mutex
	lastLagged     uint64
	lastLagWarning time.Time
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	// Subscribe before reading the current snapshot so no change falls in between
	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		sub:  s.hub.Subscribe(),
		send: make(chan []byte, sendBuffer),
	}
	client.logger = s.logger.With(zap.String("client", client.id))

	if snap, ok := s.state.Current(); ok {
		if data, err := json.Marshal(snap); err == nil {
			client.initial = data
			client.send <- data
		}
	}

	n := s.connections.Add(1)
	client.logger.Info("Subscriber connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int64("connections", n))

	s.clients.Add(1)
	go func() {
		defer s.clients.Done()
		client.run(s.clientCtx)
		n := s.connections.Add(-1)
		client.logger.Info("Subscriber disconnected", zap.Int64("connections", n))
	}()
}

// run blocks until the peer goes away or ctx ends
func (c *wsClient) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go c.readPump(cancel)
	go c.forward(ctx)
	c.writePump(ctx)
}

// readPump discards client messages and detects disconnects
func (c *wsClient) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// forward moves hub events into the send buffer. It blocks while the socket is
// behind; the hub keeps publishing and this subscriber loses the oldest events.
func (c *wsClient) forward(ctx context.Context) {
	first := true
	for {
		ev, err := c.sub.Recv(ctx)
		if err != nil {
			return
		}
		c.checkLag()

		data, err := json.Marshal(ev.Track)
		if err != nil {
			c.logger.Error("Failed to encode event", zap.Error(err))
			continue
		}
		if first {
			first = false
			if c.initial != nil && bytes.Equal(data, c.initial) {
				continue
			}
		}

		select {
		case c.send <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) checkLag() {
	c.mu.Lock()
	defer c.mu.Unlock()

	lagged := c.sub.Lagged()
	if lagged == c.lastLagged {
		return
	}
	now := time.Now()
	if now.Sub(c.lastLagWarning) >= lagWarningInterval {
		c.logger.Warn("Slow subscriber fell behind, oldest events dropped",
			zap.Uint64("lagged", lagged))
		c.lastLagWarning = now
	}
	c.lastLagged = lagged
}
