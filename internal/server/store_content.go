package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func (s *Server) createCharacter(ctx context.Context, c Character) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (id, owner_id, name, class, level, sheet, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.Class, c.Level, nullableJSON(c.Sheet), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (s *Server) updateCharacter(ctx context.Context, c Character) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE characters SET name = ?, class = ?, level = ?, sheet = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		c.Name, c.Class, c.Level, nullableJSON(c.Sheet), c.UpdatedAt, c.ID, c.OwnerID)
	if err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) deleteCharacter(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) listCharacters(ctx context.Context) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, class, level, sheet, created_at, updated_at
		 FROM characters ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	chars := []Character{}
	for rows.Next() {
		var c Character
		var sheet sql.NullString
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Class, &c.Level, &sheet, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		if sheet.Valid {
			c.Sheet = json.RawMessage(sheet.String)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

func (s *Server) createStoryEntry(ctx context.Context, e StoryEntry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO story_entries (id, author_id, title, content, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AuthorID, e.Title, e.Content, string(tags), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert story entry: %w", err)
	}
	return nil
}

func (s *Server) updateStoryEntry(ctx context.Context, e StoryEntry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE story_entries SET title = ?, content = ?, tags = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Content, string(tags), e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update story entry: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) deleteStoryEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM story_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete story entry: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) listStoryEntries(ctx context.Context) ([]StoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author_id, title, content, tags, created_at, updated_at
		 FROM story_entries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query story entries: %w", err)
	}
	defer rows.Close()

	entries := []StoryEntry{}
	for rows.Next() {
		var e StoryEntry
		var tags string
		if err := rows.Scan(&e.ID, &e.AuthorID, &e.Title, &e.Content, &tags, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan story entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Server) createSessionLog(ctx context.Context, l SessionLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_logs (id, author_id, title, content, session_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.AuthorID, l.Title, l.Content, l.SessionDate, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session log: %w", err)
	}
	return nil
}

func (s *Server) listSessionLogs(ctx context.Context) ([]SessionLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author_id, title, content, session_date, created_at
		 FROM session_logs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer rows.Close()

	logs := []SessionLog{}
	for rows.Next() {
		var l SessionLog
		if err := rows.Scan(&l.ID, &l.AuthorID, &l.Title, &l.Content, &l.SessionDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Server) createNPC(ctx context.Context, n NPC) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO npcs (id, owner_id, name, description, location_id, player_visible, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Name, n.Description, nullableString(n.LocationID), n.PlayerVisible, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert npc: %w", err)
	}
	return nil
}

func (s *Server) updateNPC(ctx context.Context, n NPC) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE npcs SET name = ?, description = ?, location_id = ?, player_visible = ?
		 WHERE id = ? AND owner_id = ?`,
		n.Name, n.Description, nullableString(n.LocationID), n.PlayerVisible, n.ID, n.OwnerID)
	if err != nil {
		return fmt.Errorf("update npc: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) deleteNPC(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM npcs WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete npc: %w", err)
	}
	return requireRowChanged(res)
}

// listNPCs returns all NPCs for the DM, or only player-visible ones otherwise.
func (s *Server) listNPCs(ctx context.Context, includeHidden bool) ([]NPC, error) {
	query := `SELECT id, owner_id, name, description, location_id, player_visible, created_at
		 FROM npcs ORDER BY name`
	if !includeHidden {
		query = `SELECT id, owner_id, name, description, location_id, player_visible, created_at
		 FROM npcs WHERE player_visible = 1 ORDER BY name`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query npcs: %w", err)
	}
	defer rows.Close()

	npcs := []NPC{}
	for rows.Next() {
		var n NPC
		var locationID sql.NullString
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Name, &n.Description, &locationID, &n.PlayerVisible, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan npc: %w", err)
		}
		n.LocationID = locationID.String
		npcs = append(npcs, n)
	}
	return npcs, rows.Err()
}

func (s *Server) createLocation(ctx context.Context, l Location) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (id, name, description, parent_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Description, nullableString(l.ParentID), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (s *Server) updateLocation(ctx context.Context, l Location) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE locations SET name = ?, description = ?, parent_id = ? WHERE id = ?`,
		l.Name, l.Description, nullableString(l.ParentID), l.ID)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) deleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return requireRowChanged(res)
}

func (s *Server) listLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, parent_id, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		var l Location
		var parentID sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &parentID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		l.ParentID = parentID.String
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *Server) createAsset(ctx context.Context, a Asset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, owner_id, filename, url, content_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Filename, a.URL, a.ContentType, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *Server) listAssets(ctx context.Context, ownerID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, filename, url, content_type, size, created_at
		 FROM assets WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := []Asset{}
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Filename, &a.URL, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
