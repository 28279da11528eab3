package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roundtable/engine/pkg/types"
)

// speakRequest is the body for speak:request. AgentID grants the floor to
// a specific participant (moderated order, or an intervention overriding
// the rule engine's pick); Content with no AgentID records the observer
// speaking directly into the transcript as "user", bypassing turn-taking
// entirely.
type speakRequest struct {
	AgentID string `json:"agentID,omitempty"`
	Content string `json:"content,omitempty"`
}

const observerSpeakerID = "user"

// speakRequestHandler handles POST /session/{sessionID}/speak.
func (s *Server) speakRequestHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	if req.AgentID != "" {
		if err := ctrl.GrantTurnTo(r.Context(), req.AgentID); err != nil {
			writeCommandError(w, err)
			return
		}
		writeCommandOK(w, map[string]any{"grantedTo": req.AgentID})
		return
	}

	if req.Content == "" {
		writeCommandError(w, fmt.Errorf("speak:request needs either agentID or content"))
		return
	}
	log, err := s.mgr.Log(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	e, err := log.Append(r.Context(), types.EventSpeechComplete, observerSpeakerID, map[string]any{
		"content": req.Content,
	}, false)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"event": e})
}

// intentSubmitRequest is the body for intent:submit.
type intentSubmitRequest struct {
	AgentID      string  `json:"agentID"`
	Content      string  `json:"content,omitempty"`
	UrgencyLevel int     `json:"urgencyLevel,omitempty"`
	Urgency      float64 `json:"urgency,omitempty"`
	Interrupt    bool    `json:"interrupt,omitempty"`
}

// submitIntent handles POST /session/{sessionID}/intents: intent:submit.
func (s *Server) submitIntent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req intentSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	intent, err := ctrl.SubmitIntent(r.Context(), types.Intent{
		SessionID:    sessionID,
		AgentID:      req.AgentID,
		Content:      req.Content,
		UrgencyLevel: req.UrgencyLevel,
		Urgency:      req.Urgency,
		Interrupt:    req.Interrupt,
	})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"intent": intent})
}

// listIntents handles GET /session/{sessionID}/intents: intent:list.
func (s *Server) listIntents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"intents": ctrl.Queue().List()})
}

// withdrawIntent handles DELETE /session/{sessionID}/intents/{intentID}.
func (s *Server) withdrawIntent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	intentID := chi.URLParam(r, "intentID")
	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if err := ctrl.WithdrawIntent(r.Context(), intentID, r.URL.Query().Get("agentID")); err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, nil)
}

// moderatorCallRequest is the body for moderator:call: the moderator
// speaking in its own voice to steer the discussion, recorded as a
// moderator.prompt event rather than attributed to any participant.
type moderatorCallRequest struct {
	Content string `json:"content"`
}

// moderatorCall handles POST /session/{sessionID}/moderator/call.
func (s *Server) moderatorCall(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req moderatorCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	log, err := s.mgr.Log(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	e, err := log.Append(r.Context(), types.EventModeratorPrompt, "", map[string]any{"content": req.Content}, false)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"event": e})
}

// moderatorRequestResponseRequest is the body for
// moderator:request-response: a directed question at one participant,
// expecting them to answer on their next granted turn.
type moderatorRequestResponseRequest struct {
	AgentID string `json:"agentID"`
	Content string `json:"content"`
}

// moderatorRequestResponse handles POST
// /session/{sessionID}/moderator/respond.
func (s *Server) moderatorRequestResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req moderatorRequestResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	log, err := s.mgr.Log(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	e, err := log.Append(r.Context(), types.EventModeratorResponse, req.AgentID, map[string]any{"content": req.Content}, false)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"event": e})
}

// interventionSetRequest is the body for intervention:set.
type interventionSetRequest struct {
	Level types.InterventionLevel `json:"level"`
}

// setIntervention handles PUT /session/{sessionID}/intervention.
func (s *Server) setIntervention(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req interventionSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if err := ctrl.SetIntervention(r.Context(), req.Level); err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"level": req.Level})
}

// getIntervention handles GET /session/{sessionID}/intervention.
func (s *Server) getIntervention(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := s.mgr.Controller(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"level": ctrl.State().InterventionLevel})
}

// generateOutline handles POST /session/{sessionID}/outline:
// outline:generate.
func (s *Server) generateOutline(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	outline, err := s.mgr.Outline(r.Context(), sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"outline": outline})
}

// getOutline handles GET /session/{sessionID}/outline: outline:get,
// returning the most recently generated outline rather than producing a
// new one.
func (s *Server) getOutline(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	log, err := s.mgr.Log(sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	events := log.GetByType(types.EventOutlineGenerated)
	if len(events) == 0 {
		writeCommandOK(w, map[string]any{"outline": ""})
		return
	}
	last := events[len(events)-1]
	writeCommandOK(w, map[string]any{"outline": last.Payload["outline"]})
}

// judgeScore handles POST /session/{sessionID}/judge: judge:score.
func (s *Server) judgeScore(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	score, explanation, err := s.mgr.Judge(r.Context(), sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"score": score, "explanation": explanation})
}

// generateSummary handles POST /session/{sessionID}/summary:
// summary:generate.
func (s *Server) generateSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	summary, err := s.mgr.Summary(r.Context(), sessionID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeCommandOK(w, map[string]any{"summary": summary})
}
