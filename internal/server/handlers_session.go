package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roundtable/engine/internal/coreerrors"
	"github.com/roundtable/engine/internal/scenario"
	"github.com/roundtable/engine/pkg/types"
)

// errorStatus maps a coreerrors sentinel to the HTTP status a failed
// request (not a failed command) should report.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, coreerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coreerrors.ErrCapability):
		return http.StatusConflict
	case errors.Is(err, coreerrors.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, coreerrors.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, coreerrors.ErrCapability):
		return ErrCodeCapability
	case errors.Is(err, coreerrors.ErrConfiguration):
		return ErrCodeConfiguration
	default:
		return ErrCodeInternalError
	}
}

// createSessionRequest is the request body for POST /session: either a
// full inline scenario, or the path of a scenario file, loaded as given
// (it is not resolved against the configured scenario directory).
type createSessionRequest struct {
	Scenario     *types.Scenario `json:"scenario,omitempty"`
	ScenarioPath string          `json:"scenarioPath,omitempty"`
	UserID       string          `json:"userID,omitempty"`
}

// createSession handles POST /session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	sc := req.Scenario
	if sc == nil {
		if req.ScenarioPath == "" {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "scenario or scenarioPath is required")
			return
		}
		loaded, err := scenario.LoadFile(req.ScenarioPath)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		sc = loaded
	}

	state, err := s.mgr.Create(r.Context(), *sc, req.UserID)
	if err != nil {
		writeError(w, errorStatus(err), errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// listSessions handles GET /session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userID")
	sessions := s.mgr.List(userID)
	if sessions == nil {
		sessions = []*types.SessionState{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// getSession handles GET /session/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	state, err := s.mgr.Get(sessionID)
	if err != nil {
		writeError(w, errorStatus(err), errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.mgr.Delete(r.Context(), sessionID); err != nil {
		writeError(w, errorStatus(err), errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// startSession handles POST /session/{sessionID}/start. Not one of the
// observer protocol's own commands, but the plumbing join_session needs:
// a scenario is created pending and must be explicitly started before its
// discussion loop begins granting turns.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.mgr.Start(r.Context(), sessionID); err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, nil)
}

// sessionControlRequest is the body for session:control.
type sessionControlRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// sessionControl handles POST /session/{sessionID}/control: the
// session:control observer command (pause, resume, end; abort is reached
// the same way with a reason, since the protocol doesn't distinguish a
// graceful end from a forced one at the transport level).
func (s *Server) sessionControl(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req sessionControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = s.mgr.Pause(r.Context(), sessionID)
	case "resume":
		err = s.mgr.Resume(r.Context(), sessionID)
	case "end":
		err = s.mgr.End(r.Context(), sessionID)
	case "abort":
		err = s.mgr.Abort(r.Context(), sessionID, req.Reason)
	default:
		writeCommandError(w, fmt.Errorf("unknown session:control action %q", req.Action))
		return
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, nil)
}
