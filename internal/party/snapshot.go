package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound reports a gateway read that resolved to nothing, including a
// map that exists but is not owned by the requesting DM.
var ErrNotFound = errors.New("not found")

// MapInfo is the persisted metadata for a battle map.
type MapInfo struct {
	ID          string
	Name        string
	ImageURL    string
	GridEnabled bool
	GridSize    int
	OwnerID     string
}

// Element is a positioned annotation on a map. Position and size are
// fractions of the image dimensions.
type Element struct {
	ID            string          `json:"id"`
	MapID         string          `json:"mapId"`
	Kind          string          `json:"element_type"`
	X             float64         `json:"x"`
	Y             float64         `json:"y"`
	Width         *float64        `json:"width,omitempty"`
	Height        *float64        `json:"height,omitempty"`
	Label         string          `json:"label"`
	Description   string          `json:"description,omitempty"`
	PlayerVisible bool            `json:"playerVisible"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Gateway is the persistence boundary the hub reads through when the DM
// activates a map. The three reads are independent; nothing guarantees they
// observe the same point in time.
type Gateway interface {
	MapOwnedBy(ctx context.Context, mapID, dmID string) (MapInfo, error)
	FogDocument(ctx context.Context, mapID string) (json.RawMessage, error)
	PlayerVisibleElements(ctx context.Context, mapID string) ([]Element, error)
}

// Snapshot is the full point-in-time map view pushed to the party on
// dm_set_active_map_for_party.
type Snapshot struct {
	MapID           string          `json:"mapId"`
	MapName         string          `json:"mapName"`
	MapImageURL     string          `json:"mapImageUrl"`
	GridEnabled     bool            `json:"gridEnabled"`
	GridSize        int             `json:"gridSize"`
	FogData         json.RawMessage `json:"fogDataJson"`
	InitialElements []Element       `json:"initialElements"`
}

var emptyFog = json.RawMessage("[]")

// assembleSnapshot builds the snapshot from three independent gateway reads.
// The map may be deleted between reads; the first read doubles as the
// ownership check and surfaces ErrNotFound.
func (h *Hub) assembleSnapshot(ctx context.Context, mapID, dmID string) (Snapshot, error) {
	info, err := h.gateway.MapOwnedBy(ctx, mapID, dmID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load map %s: %w", mapID, err)
	}
	if info.ImageURL == "" {
		return Snapshot{}, fmt.Errorf("map %s has no image: %w", mapID, ErrNotFound)
	}

	fog, err := h.gateway.FogDocument(ctx, mapID)
	if errors.Is(err, ErrNotFound) {
		fog = emptyFog
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("load fog for map %s: %w", mapID, err)
	}

	all, err := h.gateway.PlayerVisibleElements(ctx, mapID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load elements for map %s: %w", mapID, err)
	}
	// The player/DM information asymmetry is enforced here and nowhere else
	// in the live path: hidden elements never leave the server.
	elements := make([]Element, 0, len(all))
	for _, e := range all {
		if e.PlayerVisible {
			elements = append(elements, e)
		}
	}

	return Snapshot{
		MapID:           info.ID,
		MapName:         info.Name,
		MapImageURL:     info.ImageURL,
		GridEnabled:     info.GridEnabled,
		GridSize:        info.GridSize,
		FogData:         fog,
		InitialElements: elements,
	}, nil
}
