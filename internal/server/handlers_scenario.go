package server

import (
	"io"
	"net/http"

	"github.com/roundtable/engine/internal/scenario"
)

// validateScenario handles POST /scenario/validate: loads and validates
// the posted YAML body without creating a session from it, so an
// authoring tool can check a scenario before submitting it.
func (s *Server) validateScenario(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "could not read request body")
		return
	}

	sc, err := scenario.LoadBytes(body)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"scenario": sc})
}
