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

type mapRequest struct {
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	GridEnabled bool   `json:"gridEnabled"`
	GridSize    int    `json:"gridSize"`
}

func (s *Server) handleMapCreate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req mapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "name and imageUrl are required")
		return
	}
	if req.GridSize <= 0 {
		req.GridSize = 50
	}

	m := Map{
		ID:          uuid.NewString(),
		OwnerID:     ident.ID,
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		GridEnabled: req.GridEnabled,
		GridSize:    req.GridSize,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.createMap(r.Context(), m); err != nil {
		s.logger.Error("create map", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create map")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleMapList(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	maps, err := s.mapsByOwner(r.Context(), ident.ID)
	if err != nil {
		s.logger.Error("list maps", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list maps")
		return
	}
	writeJSON(w, http.StatusOK, maps)
}

func (s *Server) handleMapGet(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	m, err := s.mapOwnedBy(r.Context(), mux.Vars(r)["id"], ident.ID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}
	if err != nil {
		s.logger.Error("get map", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load map")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMapUpdate(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req mapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "name and imageUrl are required")
		return
	}
	if req.GridSize <= 0 {
		req.GridSize = 50
	}

	m := Map{
		ID:          mux.Vars(r)["id"],
		OwnerID:     ident.ID,
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		GridEnabled: req.GridEnabled,
		GridSize:    req.GridSize,
	}
	err := s.updateMap(r.Context(), m)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}
	if err != nil {
		s.logger.Error("update map", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update map")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMapDelete(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	err := s.deleteMap(r.Context(), mux.Vars(r)["id"], ident.ID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}
	if err != nil {
		s.logger.Error("delete map", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete map")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type elementRequest struct {
	ID            string          `json:"id"`
	Kind          string          `json:"element_type"`
	X             float64         `json:"x"`
	Y             float64         `json:"y"`
	Width         *float64        `json:"width"`
	Height        *float64        `json:"height"`
	Label         string          `json:"label"`
	Description   string          `json:"description"`
	PlayerVisible bool            `json:"playerVisible"`
	Data          json.RawMessage `json:"data"`
}

func (s *Server) handleElementUpsert(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	mapID := mux.Vars(r)["id"]

	if _, err := s.mapOwnedBy(r.Context(), mapID, ident.ID); err != nil {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}

	var req elementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !validElementKind(req.Kind) {
		writeError(w, http.StatusBadRequest, "element_type must be pin, text, or area")
		return
	}
	if req.X < 0 || req.X > 1 || req.Y < 0 || req.Y > 1 {
		writeError(w, http.StatusBadRequest, "x and y must be within [0,1]")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	element := MapElement{
		Element: party.Element{
			ID:            req.ID,
			MapID:         mapID,
			Kind:          req.Kind,
			X:             req.X,
			Y:             req.Y,
			Width:         req.Width,
			Height:        req.Height,
			Label:         req.Label,
			Description:   req.Description,
			PlayerVisible: req.PlayerVisible,
			Data:          req.Data,
		},
		OwnerID:   ident.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.upsertElement(r.Context(), element); err != nil {
		s.logger.Error("upsert element", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save element")
		return
	}
	writeJSON(w, http.StatusOK, element)
}

func (s *Server) handleElementList(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	mapID := mux.Vars(r)["id"]

	if _, err := s.mapOwnedBy(r.Context(), mapID, ident.ID); err != nil {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}

	elements, err := s.elementsByMap(r.Context(), mapID)
	if err != nil {
		s.logger.Error("list elements", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list elements")
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

func (s *Server) handleElementDelete(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	vars := mux.Vars(r)

	if _, err := s.mapOwnedBy(r.Context(), vars["id"], ident.ID); err != nil {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}

	err := s.deleteElement(r.Context(), vars["id"], vars["elementId"])
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}
	if err != nil {
		s.logger.Error("delete element", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete element")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleFogGet(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	mapID := mux.Vars(r)["id"]

	if _, err := s.mapOwnedBy(r.Context(), mapID, ident.ID); err != nil {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}

	fog, err := s.FogDocument(r.Context(), mapID)
	if errors.Is(err, party.ErrNotFound) {
		fog = json.RawMessage("[]")
	} else if err != nil {
		s.logger.Error("get fog", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load fog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"fogDataJson": fog})
}

func (s *Server) handleFogPut(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	mapID := mux.Vars(r)["id"]

	if _, err := s.mapOwnedBy(r.Context(), mapID, ident.ID); err != nil {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}

	var req struct {
		FogData json.RawMessage `json:"fogDataJson"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	var regions []json.RawMessage
	if err := json.Unmarshal(req.FogData, &regions); err != nil {
		writeError(w, http.StatusBadRequest, "fogDataJson must be a JSON array")
		return
	}

	if err := s.saveFogDocument(r.Context(), mapID, req.FogData); err != nil {
		s.logger.Error("save fog", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save fog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
