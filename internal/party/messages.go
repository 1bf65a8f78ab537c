package party

import (
	"encoding/json"
	"time"
)

// Inbound action names.
const (
	ActionAuthenticate  = "authenticate"
	ActionChatMessage   = "chat_message"
	ActionDicePublic    = "dice_roll_public"
	ActionDiceSecret    = "dice_roll_secret"
	ActionWhisper       = "dm_whisper"
	ActionUpdateFog     = "dm_update_map_fog"
	ActionUpdateElement = "dm_update_map_element"
	ActionDeleteElement = "dm_delete_map_element"
	ActionSetActiveMap  = "dm_set_active_map_for_party"
)

// Outbound event names.
const (
	EventAuthenticated   = "authenticated"
	EventUnauthorized    = "unauthorized"
	EventRoomUsers       = "room_users_update"
	EventChatMessage     = "chat_message_new"
	EventDicePublic      = "dice_roll_public_new"
	EventWhisper         = "dm_whisper_new"
	EventWhisperSent     = "dm_whisper_sent_confirmation"
	EventWhisperFailed   = "dm_whisper_failed"
	EventDiceSecret      = "dice_roll_secret_new"
	EventFogUpdated      = "map_fog_updated"
	EventElementUpserted = "map_element_added_or_updated"
	EventElementDeleted  = "map_element_deleted"
	EventActiveMap       = "party_active_map_changed"
	EventMapError        = "map_error"
)

// Envelope is the wire framing for inbound messages.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is the wire framing for outbound messages.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ErrorNotice carries a human-readable rejection reason to one sender.
type ErrorNotice struct {
	Message string `json:"message"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type dicePayload struct {
	RollString string          `json:"rollString"`
	Result     int             `json:"result"`
	Details    json.RawMessage `json:"details"`
}

type whisperPayload struct {
	ToUsername string `json:"toUsername"`
	Text       string `json:"text"`
}

type fogPayload struct {
	MapID   string          `json:"mapId"`
	FogData json.RawMessage `json:"newFogDataJson"`
}

type elementPayload struct {
	MapID   string          `json:"mapId"`
	Element json.RawMessage `json:"elementData"`
}

type deleteElementPayload struct {
	MapID     string `json:"mapId"`
	ElementID string `json:"elementId"`
}

type setActiveMapPayload struct {
	MapID string `json:"mapId"`
}

// ChatMessage fans out to the whole room, sender included.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DiceRoll is a relayed roll. The result is computed client-side; the hub
// only validates the roll string and attaches the roller identity.
type DiceRoll struct {
	Roller     string          `json:"roller"`
	Role       Role            `json:"role"`
	RollString string          `json:"rollString"`
	Result     int             `json:"result"`
	Details    json.RawMessage `json:"details,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Whisper is a private DM-to-player message.
type Whisper struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FogUpdate relays a whole-document fog replacement.
type FogUpdate struct {
	MapID   string          `json:"mapId"`
	FogData json.RawMessage `json:"fogDataJson"`
}

// ElementUpdate relays an element upsert verbatim.
type ElementUpdate struct {
	MapID   string          `json:"mapId"`
	Element json.RawMessage `json:"elementData"`
}

// ElementDelete relays an element removal.
type ElementDelete struct {
	MapID     string `json:"mapId"`
	ElementID string `json:"elementId"`
}
