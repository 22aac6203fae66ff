package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tracker.transitlive.org/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum command size allowed from peer.
	maxMessageSize = 512

	// Per-connection send buffer. A client that falls this far behind is
	// disconnected rather than buffered further.
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// envelope is the wire frame for server-to-client events. Data carries the
// event payload verbatim, so a bus:update frame embeds the exact bytes the
// ingest endpoint returned.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// command is the client-to-server frame: join or leave a route room. The
// wire actions are "subscribe:route" and "unsubscribe:route"; the bare
// "subscribe"/"unsubscribe" forms are accepted as aliases.
type command struct {
	Action  string `json:"action"`
	RouteID string `json:"routeId"`
}

// Client is one WebSocket subscriber. It joins route rooms on request and
// receives every event emitted to them until it disconnects or falls
// behind.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	// send stays open for the connection's lifetime; done signals the
	// write pump to stop. Emissions racing a disconnect see done closed
	// instead of a closed send channel.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Deliver queues one event frame for the write pump. It never blocks: a
// full send buffer drops the connection instead.
func (c *Client) Deliver(event string, payload []byte) bool {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return true
	}
	select {
	case <-c.done:
		// Connection is tearing down; the frame is dropped quietly.
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn("dropping slow push subscriber", "remote_addr", c.conn.RemoteAddr().String())
		c.closeOnce.Do(func() { c.conn.Close() })
		return false
	}
}

// ServeWS upgrades the request to a WebSocket connection and runs the
// subscriber until the peer disconnects.
func ServeWS(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	metrics.PushSubscribersGauge.Inc()

	go client.writePump()
	client.readPump()
}

// readPump consumes subscribe and unsubscribe commands from the peer. It
// owns the connection teardown: when it returns the client has left every
// room and the write pump has been told to stop.
func (c *Client) readPump() {
	defer func() {
		c.hub.LeaveAll(c)
		metrics.PushSubscribersGauge.Dec()
		close(c.done)
		c.closeOnce.Do(func() { c.conn.Close() })
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.logger.Warn("ignoring malformed subscriber command", "error", err)
			continue
		}
		if cmd.RouteID == "" {
			continue
		}

		switch cmd.Action {
		case "subscribe:route", "subscribe":
			c.hub.Join(RouteRoom(cmd.RouteID), c)
		case "unsubscribe:route", "unsubscribe":
			c.hub.Leave(RouteRoom(cmd.RouteID), c)
		}
	}
}

// writePump drains the send buffer onto the connection and keeps the peer
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeOnce.Do(func() { c.conn.Close() })
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
