package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"questlog/internal/party"
)

func (s *Server) createMap(ctx context.Context, m Map) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maps (id, owner_id, name, image_url, grid_enabled, grid_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Name, m.ImageURL, m.GridEnabled, m.GridSize, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert map: %w", err)
	}
	return nil
}

func (s *Server) mapsByOwner(ctx context.Context, ownerID string) ([]Map, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, image_url, grid_enabled, grid_size, created_at
		 FROM maps WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query maps: %w", err)
	}
	defer rows.Close()

	maps := []Map{}
	for rows.Next() {
		var m Map
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Name, &m.ImageURL, &m.GridEnabled, &m.GridSize, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

func (s *Server) mapOwnedBy(ctx context.Context, mapID, ownerID string) (Map, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, image_url, grid_enabled, grid_size, created_at
		 FROM maps WHERE id = ? AND owner_id = ?`, mapID, ownerID)
	var m Map
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.ImageURL, &m.GridEnabled, &m.GridSize, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Map{}, errNotFound
	}
	if err != nil {
		return Map{}, fmt.Errorf("scan map: %w", err)
	}
	return m, nil
}

func (s *Server) updateMap(ctx context.Context, m Map) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE maps SET name = ?, image_url = ?, grid_enabled = ?, grid_size = ? WHERE id = ? AND owner_id = ?`,
		m.Name, m.ImageURL, m.GridEnabled, m.GridSize, m.ID, m.OwnerID)
	if err != nil {
		return fmt.Errorf("update map: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) deleteMap(ctx context.Context, mapID, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ? AND owner_id = ?`, mapID, ownerID)
	if err != nil {
		return fmt.Errorf("delete map: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) upsertElement(ctx context.Context, e MapElement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO map_elements
		   (id, map_id, owner_id, element_type, x, y, width, height, label, description, player_visible, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   element_type = excluded.element_type,
		   x = excluded.x, y = excluded.y,
		   width = excluded.width, height = excluded.height,
		   label = excluded.label, description = excluded.description,
		   player_visible = excluded.player_visible,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		e.ID, e.MapID, e.OwnerID, e.Kind, e.X, e.Y, e.Width, e.Height,
		e.Label, e.Description, e.PlayerVisible, nullableJSON(e.Data), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert element: %w", err)
	}
	return nil
}

func (s *Server) deleteElement(ctx context.Context, mapID, elementID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM map_elements WHERE id = ? AND map_id = ?`, elementID, mapID)
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) elementsByMap(ctx context.Context, mapID string) ([]MapElement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, map_id, owner_id, element_type, x, y, width, height, label, description, player_visible, data, created_at, updated_at
		 FROM map_elements WHERE map_id = ? ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	elements := []MapElement{}
	for rows.Next() {
		var e MapElement
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.MapID, &e.OwnerID, &e.Kind, &e.X, &e.Y, &e.Width, &e.Height,
			&e.Label, &e.Description, &e.PlayerVisible, &data, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

func (s *Server) saveFogDocument(ctx context.Context, mapID string, fog json.RawMessage) error {
	// Whole-document replacement; the PRIMARY KEY keeps at most one fog row
	// per map.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO map_fog (map_id, fog_data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(map_id) DO UPDATE SET fog_data = excluded.fog_data, updated_at = CURRENT_TIMESTAMP`,
		mapID, string(fog))
	if err != nil {
		return fmt.Errorf("save fog: %w", err)
	}
	return nil
}

// MapOwnedBy implements party.Gateway.
func (s *Server) MapOwnedBy(ctx context.Context, mapID, dmID string) (party.MapInfo, error) {
	m, err := s.mapOwnedBy(ctx, mapID, dmID)
	if errors.Is(err, errNotFound) {
		return party.MapInfo{}, party.ErrNotFound
	}
	if err != nil {
		return party.MapInfo{}, err
	}
	return party.MapInfo{
		ID:          m.ID,
		Name:        m.Name,
		ImageURL:    m.ImageURL,
		GridEnabled: m.GridEnabled,
		GridSize:    m.GridSize,
		OwnerID:     m.OwnerID,
	}, nil
}

// FogDocument implements party.Gateway.
func (s *Server) FogDocument(ctx context.Context, mapID string) (json.RawMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT fog_data FROM map_fog WHERE map_id = ?`, mapID)
	var fog string
	err := row.Scan(&fog)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, party.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan fog: %w", err)
	}
	return json.RawMessage(fog), nil
}

// PlayerVisibleElements implements party.Gateway.
func (s *Server) PlayerVisibleElements(ctx context.Context, mapID string) ([]party.Element, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, map_id, element_type, x, y, width, height, label, description, player_visible, data
		 FROM map_elements WHERE map_id = ? AND player_visible = 1 ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("query visible elements: %w", err)
	}
	defer rows.Close()

	elements := []party.Element{}
	for rows.Next() {
		var e party.Element
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.MapID, &e.Kind, &e.X, &e.Y, &e.Width, &e.Height,
			&e.Label, &e.Description, &e.PlayerVisible, &data); err != nil {
			return nil, fmt.Errorf("scan visible element: %w", err)
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

func requireRowChanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
