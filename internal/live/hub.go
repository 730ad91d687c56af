package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"livecap/internal/caption"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 64
)

// Hub fans captions out to websocket viewers as JSON messages.
type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*viewer]struct{}
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.send) })
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: map[*viewer]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and streams captions until the viewer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugf("ws upgrade: %v", err)
		return
	}
	v := &viewer{conn: conn, send: make(chan []byte, clientSend)}
	h.mu.Lock()
	h.clients[v] = struct{}{}
	h.mu.Unlock()

	go h.write(v)
	// Viewers never send anything useful; read until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(v)
}

func (h *Hub) write(v *viewer) {
	defer v.conn.Close()
	for msg := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(v)
			return
		}
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.clients, v)
	h.mu.Unlock()
	v.close()
}

// Clients reports connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends rec to every viewer. Viewers that fall behind are dropped.
func (h *Hub) Broadcast(rec caption.Record) {
	msg, err := json.Marshal(rec)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.clients {
		select {
		case v.send <- msg:
		default:
			h.logger.Warn("ws viewer too slow; disconnecting")
			delete(h.clients, v)
			v.close()
		}
	}
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.clients {
		delete(h.clients, v)
		v.close()
	}
}
