package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"questlog/internal/party"
)

type characterRequest struct {
	Name  string          `json:"name"`
	Class string          `json:"class"`
	Level int             `json:"level"`
	Sheet json.RawMessage `json:"sheet"`
}

func (s *Server) handleCharacterCreate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Level <= 0 {
		req.Level = 1
	}

	now := time.Now().UTC()
	c := Character{
		ID:        uuid.NewString(),
		OwnerID:   ident.ID,
		Name:      req.Name,
		Class:     req.Class,
		Level:     req.Level,
		Sheet:     req.Sheet,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createCharacter(r.Context(), c); err != nil {
		s.logger.Error("create character", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create character")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCharacterList(w http.ResponseWriter, r *http.Request) {
	chars, err := s.listCharacters(r.Context())
	if err != nil {
		s.logger.Error("list characters", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list characters")
		return
	}
	writeJSON(w, http.StatusOK, chars)
}

func (s *Server) handleCharacterUpdate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req characterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Level <= 0 {
		req.Level = 1
	}

	c := Character{
		ID:        mux.Vars(r)["id"],
		OwnerID:   ident.ID,
		Name:      req.Name,
		Class:     req.Class,
		Level:     req.Level,
		Sheet:     req.Sheet,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.updateCharacter(r.Context(), c)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "character not found")
		return
	}
	if err != nil {
		s.logger.Error("update character", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update character")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCharacterDelete(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	err := s.deleteCharacter(r.Context(), mux.Vars(r)["id"], ident.ID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "character not found")
		return
	}
	if err != nil {
		s.logger.Error("delete character", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete character")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type storyRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func (s *Server) handleStoryCreate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now().UTC()
	entry := StoryEntry{
		ID:        uuid.NewString(),
		AuthorID:  ident.ID,
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createStoryEntry(r.Context(), entry); err != nil {
		s.logger.Error("create story entry", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create story entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleStoryList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.listStoryEntries(r.Context())
	if err != nil {
		s.logger.Error("list story entries", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list story entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStoryUpdate(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	entry := StoryEntry{
		ID:        mux.Vars(r)["id"],
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.updateStoryEntry(r.Context(), entry)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "story entry not found")
		return
	}
	if err != nil {
		s.logger.Error("update story entry", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update story entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleStoryDelete(w http.ResponseWriter, r *http.Request) {
	err := s.deleteStoryEntry(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "story entry not found")
		return
	}
	if err != nil {
		s.logger.Error("delete story entry", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete story entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type sessionRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	SessionDate string `json:"sessionDate"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	log := SessionLog{
		ID:          uuid.NewString(),
		AuthorID:    ident.ID,
		Title:       req.Title,
		Content:     req.Content,
		SessionDate: req.SessionDate,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.createSessionLog(r.Context(), log); err != nil {
		s.logger.Error("create session log", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create session log")
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	logs, err := s.listSessionLogs(r.Context())
	if err != nil {
		s.logger.Error("list session logs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list session logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type npcRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	LocationID    string `json:"locationId"`
	PlayerVisible bool   `json:"playerVisible"`
}

func (s *Server) handleNPCCreate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req npcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	npc := NPC{
		ID:            uuid.NewString(),
		OwnerID:       ident.ID,
		Name:          req.Name,
		Description:   req.Description,
		LocationID:    req.LocationID,
		PlayerVisible: req.PlayerVisible,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.createNPC(r.Context(), npc); err != nil {
		s.logger.Error("create npc", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create npc")
		return
	}
	writeJSON(w, http.StatusCreated, npc)
}

func (s *Server) handleNPCList(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	npcs, err := s.listNPCs(r.Context(), ident.Role == party.RoleDM)
	if err != nil {
		s.logger.Error("list npcs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list npcs")
		return
	}
	writeJSON(w, http.StatusOK, npcs)
}

func (s *Server) handleNPCUpdate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req npcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	npc := NPC{
		ID:            mux.Vars(r)["id"],
		OwnerID:       ident.ID,
		Name:          req.Name,
		Description:   req.Description,
		LocationID:    req.LocationID,
		PlayerVisible: req.PlayerVisible,
	}
	err := s.updateNPC(r.Context(), npc)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "npc not found")
		return
	}
	if err != nil {
		s.logger.Error("update npc", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update npc")
		return
	}
	writeJSON(w, http.StatusOK, npc)
}

func (s *Server) handleNPCDelete(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	err := s.deleteNPC(r.Context(), mux.Vars(r)["id"], ident.ID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "npc not found")
		return
	}
	if err != nil {
		s.logger.Error("delete npc", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete npc")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type locationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parentId"`
}

func (s *Server) handleLocationCreate(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	location := Location{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.createLocation(r.Context(), location); err != nil {
		s.logger.Error("create location", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create location")
		return
	}
	writeJSON(w, http.StatusCreated, location)
}

func (s *Server) handleLocationList(w http.ResponseWriter, r *http.Request) {
	locations, err := s.listLocations(r.Context())
	if err != nil {
		s.logger.Error("list locations", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleLocationUpdate(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	location := Location{
		ID:          mux.Vars(r)["id"],
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	}
	err := s.updateLocation(r.Context(), location)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		s.logger.Error("update location", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update location")
		return
	}
	writeJSON(w, http.StatusOK, location)
}

func (s *Server) handleLocationDelete(w http.ResponseWriter, r *http.Request) {
	err := s.deleteLocation(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	if err != nil {
		s.logger.Error("delete location", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
