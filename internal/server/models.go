package server

import (
	"encoding/json"
	"time"

	"questlog/internal/party"
)

// User is a registered account. The password hash never serializes.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         party.Role `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Character is a player character sheet. The sheet body is opaque JSON owned
// by the client.
type Character struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Name      string          `json:"name"`
	Class     string          `json:"class"`
	Level     int             `json:"level"`
	Sheet     json.RawMessage `json:"sheet,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// StoryEntry is a narrative note in the campaign journal.
type StoryEntry struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionLog records what happened in one play session.
type SessionLog struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"authorId"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	SessionDate string    `json:"sessionDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NPC is a non-player character, optionally tied to a location.
type NPC struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	LocationID    string    `json:"locationId,omitempty"`
	PlayerVisible bool      `json:"playerVisible"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Location is a place in the campaign world. ParentID forms a loose
// hierarchy (region > city > tavern).
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    string    `json:"parentId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Asset is an uploaded file served from the uploads directory.
type Asset struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Map is a battle map owned by a DM.
type Map struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"imageUrl"`
	GridEnabled bool      `json:"gridEnabled"`
	GridSize    int       `json:"gridSize"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MapElement is the persisted form of a map annotation; the realtime layer
// works with party.Element, which drops the ownership columns.
type MapElement struct {
	party.Element
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Element kinds accepted by the map endpoints.
const (
	ElementKindPin  = "pin"
	ElementKindText = "text"
	ElementKindArea = "area"
)

func validElementKind(kind string) bool {
	switch kind {
	case ElementKindPin, ElementKindText, ElementKindArea:
		return true
	}
	return false
}
