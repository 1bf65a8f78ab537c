// Package party implements the realtime layer of the campaign backend: the
// shared party room, the role-gated broadcast protocol, and the map snapshot
// assembler. It is transport-agnostic; the websocket layer feeds it raw
// messages and implements Sender.
package party

// Role distinguishes the privileged DM from regular players.
type Role string

const (
	RoleDM     Role = "dm"
	RolePlayer Role = "player"
)

// Identity is the authenticated principal bound to a connection. It is set
// once by a successful authenticate handshake and lives until disconnect.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Sender is one live connection the hub can push events to. The websocket
// layer implements it; tests substitute a recording fake.
type Sender interface {
	// ID identifies the connection, not the user. Two logins by the same
	// user are two senders.
	ID() string
	Send(event string, payload any) error
	Close()
}
