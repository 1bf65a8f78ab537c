package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"questlog/internal/party"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{
		Port:           "0",
		DBPath:         filepath.Join(t.TempDir(), "test.db"),
		UploadDir:      t.TempDir(),
		MaxUploadSize:  1 << 20,
		AllowedOrigins: []string{"*"},
		TokenSecret:    "test-secret",
		TokenTTL:       time.Hour,
		RoomName:       "party",
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, handler http.Handler, username, role string) string {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/api/register", "", map[string]string{
		"username": username, "password": "hunter2hunter2", "role": role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/register", "", map[string]string{
		"username": "shorty", "password": "short",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/register", "", map[string]string{
		"username": "weirdo", "password": "hunter2hunter2", "role": "wizard",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	registerAndLogin(t, router, "alice", "dm")

	w := doJSON(t, router, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "password": "hunter2hunter2",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	registerAndLogin(t, router, "alice", "dm")

	w := doJSON(t, router, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	playerToken := registerAndLogin(t, router, "bob", "player")

	w := doJSON(t, router, http.MethodGet, "/api/story", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/story", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/maps", playerToken, map[string]any{
		"name": "Sneaky map", "imageUrl": "/uploads/x.png",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for player on DM route, got %d", w.Code)
	}
}

func TestMapLifecycleAndGatewayReads(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	dmToken := registerAndLogin(t, router, "morgana", "dm")

	w := doJSON(t, router, http.MethodPost, "/api/maps", dmToken, map[string]any{
		"name": "Sunken Temple", "imageUrl": "/uploads/temple.png", "gridEnabled": true, "gridSize": 70,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var m Map
	_ = json.NewDecoder(w.Body).Decode(&m)
	if m.ID == "" {
		t.Fatalf("expected map id to be set")
	}

	// One visible, one hidden element.
	for _, element := range []map[string]any{
		{"element_type": "pin", "x": 0.2, "y": 0.3, "label": "Altar", "playerVisible": true},
		{"element_type": "area", "x": 0.8, "y": 0.9, "label": "Trap", "playerVisible": false},
	} {
		w = doJSON(t, router, http.MethodPost, "/api/maps/"+m.ID+"/elements", dmToken, element)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 from element upsert, got %d: %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(t, router, http.MethodGet, "/api/maps/"+m.ID+"/elements", dmToken, nil)
	var all []MapElement
	_ = json.NewDecoder(w.Body).Decode(&all)
	if len(all) != 2 {
		t.Fatalf("expected 2 elements for the DM, got %d", len(all))
	}

	// The gateway read used by the snapshot assembler filters hidden ones.
	visible, err := srv.PlayerVisibleElements(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("PlayerVisibleElements: %v", err)
	}
	if len(visible) != 1 || visible[0].Label != "Altar" {
		t.Fatalf("expected only the visible element, got %+v", visible)
	}

	// Ownership check: another DM's id resolves to not-found.
	if _, err := srv.MapOwnedBy(context.Background(), m.ID, "someone-else"); !errors.Is(err, party.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}

	info, err := srv.MapOwnedBy(context.Background(), m.ID, m.OwnerID)
	if err != nil {
		t.Fatalf("MapOwnedBy: %v", err)
	}
	if info.Name != "Sunken Temple" || !info.GridEnabled || info.GridSize != 70 {
		t.Fatalf("unexpected map info: %+v", info)
	}
}

func TestFogDocumentReplacement(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	dmToken := registerAndLogin(t, router, "morgana", "dm")

	w := doJSON(t, router, http.MethodPost, "/api/maps", dmToken, map[string]any{
		"name": "Crypt", "imageUrl": "/uploads/crypt.png",
	})
	var m Map
	_ = json.NewDecoder(w.Body).Decode(&m)

	// Absent fog reads back as an empty document.
	if _, err := srv.FogDocument(context.Background(), m.ID); !errors.Is(err, party.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	w = doJSON(t, router, http.MethodPut, "/api/maps/"+m.ID+"/fog", dmToken, map[string]any{
		"fogDataJson": []map[string]any{{"shape": "rect", "x": 0, "y": 0}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from fog put, got %d: %s", w.Code, w.Body.String())
	}

	// Whole-document replacement, not accumulation.
	w = doJSON(t, router, http.MethodPut, "/api/maps/"+m.ID+"/fog", dmToken, map[string]any{
		"fogDataJson": []map[string]any{{"shape": "circle", "r": 0.5}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from second fog put, got %d", w.Code)
	}

	fog, err := srv.FogDocument(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("FogDocument: %v", err)
	}
	var regions []map[string]any
	if err := json.Unmarshal(fog, &regions); err != nil {
		t.Fatalf("fog is not an array: %v", err)
	}
	if len(regions) != 1 || regions[0]["shape"] != "circle" {
		t.Fatalf("expected the replacement document, got %s", fog)
	}

	w = doJSON(t, router, http.MethodPut, "/api/maps/"+m.ID+"/fog", dmToken, map[string]any{
		"fogDataJson": map[string]string{"not": "an array"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array fog, got %d", w.Code)
	}
}

func TestElementValidation(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	dmToken := registerAndLogin(t, router, "morgana", "dm")

	w := doJSON(t, router, http.MethodPost, "/api/maps", dmToken, map[string]any{
		"name": "Crypt", "imageUrl": "/uploads/crypt.png",
	})
	var m Map
	_ = json.NewDecoder(w.Body).Decode(&m)

	w = doJSON(t, router, http.MethodPost, "/api/maps/"+m.ID+"/elements", dmToken, map[string]any{
		"element_type": "banner", "x": 0.5, "y": 0.5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/maps/"+m.ID+"/elements", dmToken, map[string]any{
		"element_type": "pin", "x": 1.5, "y": 0.5,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range position, got %d", w.Code)
	}
}

func TestNPCVisibilityByRole(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	dmToken := registerAndLogin(t, router, "morgana", "dm")
	playerToken := registerAndLogin(t, router, "finn", "player")

	for _, npc := range []map[string]any{
		{"name": "Innkeeper", "playerVisible": true},
		{"name": "Secret villain", "playerVisible": false},
	} {
		w := doJSON(t, router, http.MethodPost, "/api/npcs", dmToken, npc)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 from npc create, got %d", w.Code)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/api/npcs", playerToken, nil)
	var visible []NPC
	_ = json.NewDecoder(w.Body).Decode(&visible)
	if len(visible) != 1 || visible[0].Name != "Innkeeper" {
		t.Fatalf("expected players to see only visible npcs, got %+v", visible)
	}

	w = doJSON(t, router, http.MethodGet, "/api/npcs", dmToken, nil)
	var all []NPC
	_ = json.NewDecoder(w.Body).Decode(&all)
	if len(all) != 2 {
		t.Fatalf("expected the DM to see both npcs, got %d", len(all))
	}
}

func TestCharacterLifecycle(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	token := registerAndLogin(t, router, "finn", "player")

	w := doJSON(t, router, http.MethodPost, "/api/characters", token, map[string]any{
		"name": "Taro", "class": "ranger", "level": 3,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var c Character
	_ = json.NewDecoder(w.Body).Decode(&c)

	w = doJSON(t, router, http.MethodPut, "/api/characters/"+c.ID, token, map[string]any{
		"name": "Taro", "class": "ranger", "level": 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from update, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/characters/"+c.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from delete, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/characters/"+c.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", w.Code)
	}
}

func TestServerRollDeterministicWithSeed(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	token := registerAndLogin(t, router, "finn", "player")

	roll := func() rollResponse {
		w := doJSON(t, router, http.MethodPost, "/api/rolls", token, map[string]any{
			"rollString": "3d6+1", "seed": 7,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp rollResponse
		_ = json.NewDecoder(w.Body).Decode(&resp)
		return resp
	}

	first := roll()
	second := roll()
	if first.Total != second.Total || len(first.Rolls) != 3 {
		t.Fatalf("expected deterministic seeded rolls, got %+v vs %+v", first, second)
	}

	w := doJSON(t, router, http.MethodPost, "/api/rolls", token, map[string]any{"rollString": "banana"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad roll string, got %d", w.Code)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	token := registerAndLogin(t, router, "morgana", "dm")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "map.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 from upload, got %d: %s", w.Code, w.Body.String())
	}

	var asset Asset
	_ = json.NewDecoder(w.Body).Decode(&asset)
	if asset.Filename != "map.png" || asset.URL == "" {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	lw := doJSON(t, router, http.MethodGet, "/api/uploads", token, nil)
	var assets []Asset
	_ = json.NewDecoder(lw.Body).Decode(&assets)
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
}

func TestRosterEndpointReflectsRoom(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	token := registerAndLogin(t, router, "finn", "player")

	w := doJSON(t, router, http.MethodGet, "/api/roster", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var roster []party.Identity
	_ = json.NewDecoder(w.Body).Decode(&roster)
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %d", len(roster))
	}
}
