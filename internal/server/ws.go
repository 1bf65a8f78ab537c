package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"questlog/internal/party"
)

// wsClient adapts one websocket connection to party.Sender. Writes are
// serialized with a mutex so concurrent broadcasts cannot interleave frames;
// within one connection events go out in send order.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.conn.WriteJSON(party.Event{Type: event, Payload: payload})
	if err != nil {
		c.logger.Warn("websocket write", slog.String("conn", c.id), slog.String("event", event), slog.String("error", err.Error()))
	}
	return err
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.matchOrigin(origin) != ""
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", slog.String("error", err.Error()))
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: conn, logger: s.logger}
	s.logger.Info("websocket connected", slog.String("conn", client.id))

	defer func() {
		s.hub.HandleDisconnect(client)
		conn.Close()
		s.logger.Info("websocket disconnected", slog.String("conn", client.id))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.HandleMessage(r.Context(), client, raw)
	}
}
