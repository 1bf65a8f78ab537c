package server

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"questlog/internal/dice"
)

type rollRequest struct {
	RollString string `json:"rollString"`
	Seed       *int64 `json:"seed"`
}

type rollResponse struct {
	RollString string `json:"rollString"`
	Rolls      []int  `json:"rolls"`
	Total      int    `json:"total"`
	Seed       int64  `json:"seed"`
}

// handleServerRoll rolls dice on the server. Clients that do not trust each
// other's local rolls can use this instead of relaying their own results.
func (s *Server) handleServerRoll(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RollString == "" {
		writeError(w, http.StatusBadRequest, "rollString is required")
		return
	}

	roll, err := dice.Parse(req.RollString)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid roll string: "+req.RollString)
		return
	}

	seed := rand.Int63()
	if req.Seed != nil {
		seed = *req.Seed
	}
	result := roll.Roll(seed)

	writeJSON(w, http.StatusOK, rollResponse{
		RollString: req.RollString,
		Rolls:      result.Rolls,
		Total:      result.Total,
		Seed:       seed,
	})
}
