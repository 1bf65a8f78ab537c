package party

import "sync"

// Room is a named broadcast group. The process creates exactly one ("party")
// at startup; membership changes on authenticate and disconnect, and the room
// itself is never destroyed.
type Room struct {
	name    string
	mu      sync.Mutex
	members map[string]member
}

type member struct {
	identity Identity
	sender   Sender
}

// NewRoom creates an empty room.
func NewRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[string]member),
	}
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// Join adds or replaces the membership for a connection. Joining twice with
// the same connection id overwrites the identity and never duplicates an
// entry.
func (r *Room) Join(connID string, identity Identity, sender Sender) {
	r.mu.Lock()
	r.members[connID] = member{identity: identity, sender: sender}
	r.mu.Unlock()
}

// Leave removes the membership for a connection and reports whether it was
// present. Leaving an absent connection is not an error; a disconnect can
// race with a connection that never authenticated.
func (r *Room) Leave(connID string) bool {
	r.mu.Lock()
	_, ok := r.members[connID]
	delete(r.members, connID)
	r.mu.Unlock()
	return ok
}

// Member returns the identity bound to a connection, if it is in the room.
func (r *Room) Member(connID string) (Identity, bool) {
	r.mu.Lock()
	m, ok := r.members[connID]
	r.mu.Unlock()
	return m.identity, ok
}

// Roster returns the identities of all current members. Order is not
// significant.
func (r *Room) Roster() []Identity {
	r.mu.Lock()
	roster := make([]Identity, 0, len(r.members))
	for _, m := range r.members {
		roster = append(roster, m.identity)
	}
	r.mu.Unlock()
	return roster
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.Lock()
	n := len(r.members)
	r.mu.Unlock()
	return n
}

// SenderByUsername resolves a member connection by display name. When the
// same user is connected twice, an arbitrary one of the connections wins.
func (r *Room) SenderByUsername(username string) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.identity.Username == username {
			return m.sender, true
		}
	}
	return nil, false
}

// Broadcast sends an event to every member. Senders are collected under the
// lock and written to outside it so a slow connection cannot stall the room.
func (r *Room) Broadcast(event string, payload any) {
	for _, s := range r.senders("") {
		_ = s.Send(event, payload)
	}
}

// BroadcastExcept sends an event to every member except the named connection.
func (r *Room) BroadcastExcept(connID string, event string, payload any) {
	for _, s := range r.senders(connID) {
		_ = s.Send(event, payload)
	}
}

func (r *Room) senders(exceptConnID string) []Sender {
	r.mu.Lock()
	out := make([]Sender, 0, len(r.members))
	for id, m := range r.members {
		if id == exceptConnID {
			continue
		}
		out = append(out, m.sender)
	}
	r.mu.Unlock()
	return out
}
