package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"questlog/internal/party"
)

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(party.Envelope{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readWS(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event wsEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

// readUntil drains events until it hits the wanted type; roster broadcasts
// from other connections can interleave with direct replies.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) wsEvent {
	t.Helper()
	for i := 0; i < 10; i++ {
		event := readWS(t, conn)
		if event.Type == eventType {
			return event
		}
	}
	t.Fatalf("never received %s", eventType)
	return wsEvent{}
}

func TestWebsocketHandshakeAndChat(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	dmToken := registerAndLogin(t, srv.Router(), "morgana", "dm")
	playerToken := registerAndLogin(t, srv.Router(), "finn", "player")

	dm := dialWS(t, ts)
	sendWS(t, dm, party.ActionAuthenticate, map[string]string{"token": dmToken})

	event := readUntil(t, dm, party.EventAuthenticated)
	var ident party.Identity
	_ = json.Unmarshal(event.Payload, &ident)
	if ident.Username != "morgana" || ident.Role != party.RoleDM {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	rosterEvent := readUntil(t, dm, party.EventRoomUsers)
	var roster []party.Identity
	_ = json.Unmarshal(rosterEvent.Payload, &roster)
	if len(roster) != 1 {
		t.Fatalf("expected roster of 1, got %d", len(roster))
	}

	player := dialWS(t, ts)
	sendWS(t, player, party.ActionAuthenticate, map[string]string{"token": playerToken})
	readUntil(t, player, party.EventAuthenticated)

	// Both see the grown roster.
	rosterEvent = readUntil(t, dm, party.EventRoomUsers)
	_ = json.Unmarshal(rosterEvent.Payload, &roster)
	if len(roster) != 2 {
		t.Fatalf("expected roster of 2, got %d", len(roster))
	}
	readUntil(t, player, party.EventRoomUsers)

	sendWS(t, player, party.ActionChatMessage, map[string]string{"text": "hello party"})
	chat := readUntil(t, dm, party.EventChatMessage)
	var msg party.ChatMessage
	_ = json.Unmarshal(chat.Payload, &msg)
	if msg.Sender != "finn" || msg.Text != "hello party" {
		t.Fatalf("unexpected chat message: %+v", msg)
	}
	readUntil(t, player, party.EventChatMessage)
}

func TestWebsocketRejectsBadCredential(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)
	sendWS(t, conn, party.ActionAuthenticate, map[string]string{"token": "forged"})

	event := readWS(t, conn)
	if event.Type != party.EventUnauthorized {
		t.Fatalf("expected unauthorized, got %s", event.Type)
	}

	// The server closes the connection after the rejection.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to be closed")
	}
}

func TestWebsocketPlayerCannotUpdateFog(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	playerToken := registerAndLogin(t, srv.Router(), "finn", "player")

	player := dialWS(t, ts)
	sendWS(t, player, party.ActionAuthenticate, map[string]string{"token": playerToken})
	readUntil(t, player, party.EventAuthenticated)

	sendWS(t, player, party.ActionUpdateFog, map[string]any{
		"mapId": "m1", "newFogDataJson": []any{},
	})

	event := readUntil(t, player, party.EventMapError)
	var notice party.ErrorNotice
	_ = json.Unmarshal(event.Payload, &notice)
	if !strings.Contains(notice.Message, "dm") {
		t.Fatalf("expected role rejection, got %q", notice.Message)
	}
}

// End-to-end version of the snapshot flow: persist through REST, activate
// over the socket, and check the filtered snapshot arrives.
func TestWebsocketSetActiveMapDeliversFilteredSnapshot(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	router := srv.Router()
	dmToken := registerAndLogin(t, router, "morgana", "dm")
	playerToken := registerAndLogin(t, router, "finn", "player")

	w := doJSON(t, router, "POST", "/api/maps", dmToken, map[string]any{
		"name": "Sunken Temple", "imageUrl": "/uploads/temple.png", "gridEnabled": true, "gridSize": 70,
	})
	var m Map
	_ = json.NewDecoder(w.Body).Decode(&m)

	for _, element := range []map[string]any{
		{"element_type": "pin", "x": 0.2, "y": 0.3, "label": "Altar", "playerVisible": true},
		{"element_type": "area", "x": 0.8, "y": 0.9, "label": "Trap", "playerVisible": false},
	} {
		doJSON(t, router, "POST", "/api/maps/"+m.ID+"/elements", dmToken, element)
	}

	dm := dialWS(t, ts)
	sendWS(t, dm, party.ActionAuthenticate, map[string]string{"token": dmToken})
	readUntil(t, dm, party.EventAuthenticated)

	player := dialWS(t, ts)
	sendWS(t, player, party.ActionAuthenticate, map[string]string{"token": playerToken})
	readUntil(t, player, party.EventAuthenticated)

	sendWS(t, dm, party.ActionSetActiveMap, map[string]string{"mapId": m.ID})

	for _, conn := range []*websocket.Conn{dm, player} {
		event := readUntil(t, conn, party.EventActiveMap)
		var snapshot party.Snapshot
		_ = json.Unmarshal(event.Payload, &snapshot)
		if snapshot.MapID != m.ID || snapshot.MapName != "Sunken Temple" {
			t.Fatalf("unexpected snapshot: %+v", snapshot)
		}
		if len(snapshot.InitialElements) != 1 || snapshot.InitialElements[0].Label != "Altar" {
			t.Fatalf("expected only the visible element, got %+v", snapshot.InitialElements)
		}
		if string(snapshot.FogData) != "[]" {
			t.Fatalf("expected empty fog document, got %s", snapshot.FogData)
		}
	}
}
