package party

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"questlog/internal/dice"
)

// TokenVerifier turns the credential presented by the authenticate handshake
// into an Identity. Token issuance lives with the HTTP layer.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// Hub owns the party room and implements the broadcast protocol. It holds no
// persistent state of its own; every action is a validated, role-gated
// fan-out. Persisted map state is only read, never written, from here.
type Hub struct {
	room     *Room
	gateway  Gateway
	verifier TokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewHub wires a hub to its room, persistence gateway, and token verifier.
func NewHub(room *Room, gateway Gateway, verifier TokenVerifier, logger *slog.Logger) *Hub {
	return &Hub{
		room:     room,
		gateway:  gateway,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Room exposes the party room, mainly for the HTTP roster endpoint.
func (h *Hub) Room() *Room { return h.room }

// HandleMessage dispatches one raw inbound message from a connection.
// Everything except authenticate requires the connection to be a room member.
func (h *Hub) HandleMessage(ctx context.Context, client Sender, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.reject(client, "malformed message")
		return
	}

	if env.Type == ActionAuthenticate {
		h.handleAuthenticate(ctx, client, env.Payload)
		return
	}

	ident, ok := h.room.Member(client.ID())
	if !ok {
		h.reject(client, "not authenticated")
		return
	}

	switch env.Type {
	case ActionChatMessage:
		h.handleChat(client, ident, env.Payload)
	case ActionDicePublic:
		h.handleDicePublic(client, ident, env.Payload)
	case ActionDiceSecret:
		h.handleDiceSecret(client, ident, env.Payload)
	case ActionWhisper:
		h.handleWhisper(client, ident, env.Payload)
	case ActionUpdateFog:
		h.handleUpdateFog(client, ident, env.Payload)
	case ActionUpdateElement:
		h.handleUpdateElement(client, ident, env.Payload)
	case ActionDeleteElement:
		h.handleDeleteElement(client, ident, env.Payload)
	case ActionSetActiveMap:
		h.handleSetActiveMap(ctx, client, ident, env.Payload)
	default:
		h.reject(client, "unknown message type: "+env.Type)
	}
}

// HandleDisconnect removes the connection from the room. Safe to call for
// connections that never authenticated.
func (h *Hub) HandleDisconnect(client Sender) {
	if h.room.Leave(client.ID()) {
		h.logger.Info("member left", slog.String("conn", client.ID()), slog.Int("members", h.room.Len()))
		h.broadcastRoster()
	}
}

func (h *Hub) handleAuthenticate(ctx context.Context, client Sender, payload json.RawMessage) {
	var p authenticatePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Token == "" {
		client.Send(EventUnauthorized, ErrorNotice{Message: "missing credentials"})
		client.Close()
		return
	}

	ident, err := h.verifier.VerifyToken(ctx, p.Token)
	if err != nil {
		h.logger.Info("authentication rejected", slog.String("conn", client.ID()), slog.String("error", err.Error()))
		client.Send(EventUnauthorized, ErrorNotice{Message: "invalid credentials"})
		client.Close()
		return
	}

	// Re-authentication overwrites the bound identity; Join is an upsert.
	h.room.Join(client.ID(), ident, client)
	client.Send(EventAuthenticated, ident)
	h.logger.Info("member joined",
		slog.String("conn", client.ID()),
		slog.String("user", ident.Username),
		slog.String("role", string(ident.Role)),
		slog.Int("members", h.room.Len()))
	h.broadcastRoster()
}

func (h *Hub) handleChat(client Sender, ident Identity, payload json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(payload, &p); err != nil || strings.TrimSpace(p.Text) == "" {
		h.reject(client, "chat message requires text")
		return
	}
	h.room.Broadcast(EventChatMessage, ChatMessage{
		Sender:    ident.Username,
		Role:      ident.Role,
		Text:      p.Text,
		Timestamp: h.now().UTC(),
	})
}

func (h *Hub) handleDicePublic(client Sender, ident Identity, payload json.RawMessage) {
	roll, ok := h.parseDice(client, payload)
	if !ok {
		return
	}
	h.room.Broadcast(EventDicePublic, h.diceEvent(ident, roll))
}

func (h *Hub) handleDiceSecret(client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	roll, ok := h.parseDice(client, payload)
	if !ok {
		return
	}
	// Secret rolls echo to the DM alone.
	client.Send(EventDiceSecret, h.diceEvent(ident, roll))
}

func (h *Hub) parseDice(client Sender, payload json.RawMessage) (dicePayload, bool) {
	var p dicePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.RollString == "" {
		h.reject(client, "dice roll requires rollString")
		return dicePayload{}, false
	}
	if _, err := dice.Parse(p.RollString); err != nil {
		h.reject(client, "invalid roll string: "+p.RollString)
		return dicePayload{}, false
	}
	return p, true
}

func (h *Hub) diceEvent(ident Identity, p dicePayload) DiceRoll {
	return DiceRoll{
		Roller:     ident.Username,
		Role:       ident.Role,
		RollString: p.RollString,
		Result:     p.Result,
		Details:    p.Details,
		Timestamp:  h.now().UTC(),
	}
}

func (h *Hub) handleWhisper(client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	var p whisperPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ToUsername == "" || strings.TrimSpace(p.Text) == "" {
		h.reject(client, "whisper requires toUsername and text")
		return
	}

	target, ok := h.room.SenderByUsername(p.ToUsername)
	if !ok {
		client.Send(EventWhisperFailed, ErrorNotice{Message: "no connected user named " + p.ToUsername})
		return
	}

	whisper := Whisper{From: ident.Username, Text: p.Text, Timestamp: h.now().UTC()}
	target.Send(EventWhisper, whisper)
	client.Send(EventWhisperSent, whisperPayload{ToUsername: p.ToUsername, Text: p.Text})
}

func (h *Hub) handleUpdateFog(client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	var p fogPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MapID == "" {
		h.reject(client, "fog update requires mapId and newFogDataJson")
		return
	}
	// The fog document is opaque but must be a JSON array of region
	// descriptors; it is relayed verbatim.
	var regions []json.RawMessage
	if err := json.Unmarshal(p.FogData, &regions); err != nil {
		h.reject(client, "newFogDataJson must be a JSON array")
		return
	}
	h.room.BroadcastExcept(client.ID(), EventFogUpdated, FogUpdate{MapID: p.MapID, FogData: p.FogData})
}

func (h *Hub) handleUpdateElement(client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	var p elementPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MapID == "" || len(p.Element) == 0 {
		h.reject(client, "element update requires mapId and elementData")
		return
	}
	var fields struct {
		ID   string `json:"id"`
		Kind string `json:"element_type"`
	}
	if err := json.Unmarshal(p.Element, &fields); err != nil || fields.ID == "" || fields.Kind == "" {
		h.reject(client, "elementData requires id and element_type")
		return
	}
	h.room.BroadcastExcept(client.ID(), EventElementUpserted, ElementUpdate{MapID: p.MapID, Element: p.Element})
}

func (h *Hub) handleDeleteElement(client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	var p deleteElementPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MapID == "" || p.ElementID == "" {
		h.reject(client, "element delete requires mapId and elementId")
		return
	}
	h.room.BroadcastExcept(client.ID(), EventElementDeleted, ElementDelete{MapID: p.MapID, ElementID: p.ElementID})
}

func (h *Hub) handleSetActiveMap(ctx context.Context, client Sender, ident Identity, payload json.RawMessage) {
	if !h.requireDM(client, ident) {
		return
	}
	var p setActiveMapPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MapID == "" {
		h.reject(client, "set active map requires mapId")
		return
	}

	snapshot, err := h.assembleSnapshot(ctx, p.MapID, ident.ID)
	if errors.Is(err, ErrNotFound) {
		h.reject(client, "map not found: "+p.MapID)
		return
	}
	if err != nil {
		h.logger.Error("assemble snapshot", slog.String("map", p.MapID), slog.String("error", err.Error()))
		h.reject(client, "failed to load map state")
		return
	}

	// The snapshot goes to the sender too; the DM client reconciles against
	// it like everyone else.
	h.room.Broadcast(EventActiveMap, snapshot)
	h.logger.Info("active map changed",
		slog.String("map", p.MapID),
		slog.String("dm", ident.Username),
		slog.Int("elements", len(snapshot.InitialElements)))
}

func (h *Hub) requireDM(client Sender, ident Identity) bool {
	if ident.Role != RoleDM {
		h.reject(client, "requires dm role")
		return false
	}
	return true
}

// reject delivers a sender-only rejection. Rejections never reach the room.
func (h *Hub) reject(client Sender, reason string) {
	client.Send(EventMapError, ErrorNotice{Message: reason})
}

func (h *Hub) broadcastRoster() {
	h.room.Broadcast(EventRoomUsers, h.room.Roster())
}
