package websocket

import (
	"net/http"
	"strings"
	"time"

	"GapWatchAPI/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MonitorScoped is implemented by payloads that belong to one monitor.
type MonitorScoped interface {
	MonitorKey() string
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	monitor string
	types   map[string]bool
}

// newClient reads the optional filters ?monitor=<id> and
// ?types=GAP_ALERT,GAP_RESOLVED from the upgrade request.
func newClient(hub *Hub, conn *websocket.Conn, r *http.Request) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, 256),
		monitor: strings.TrimSpace(r.URL.Query().Get("monitor")),
	}
	if raw := r.URL.Query().Get("types"); raw != "" {
		c.types = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				c.types[t] = true
			}
		}
	}
	return c
}

// wants reports whether msg passes the client's filters.
func (c *Client) wants(msg Message) bool {
	if c.types != nil && !c.types[msg.Type] {
		return false
	}
	if c.monitor == "" {
		return true
	}
	scoped, ok := msg.Payload.(MonitorScoped)
	return ok && scoped.MonitorKey() == c.monitor
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs upgrades the request and streams hub events to the peer. Clients
// only listen; anything they send is discarded.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("WS Upgrade Error: %v", err)
		return
	}
	client := newClient(hub, conn, r)
	if !hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go client.writePump()
	go func() {
		defer func() {
			client.hub.leave(client)
			client.conn.Close()
		}()
		client.conn.SetReadLimit(maxMessageSize)
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		client.conn.SetPongHandler(func(string) error { client.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
		for {
			_, _, err := client.conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
