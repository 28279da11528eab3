// SSE Implementation Note:
//
// This file streams session events over Server-Sent Events with a small
// hand-rolled writer rather than a third-party SSE package. A session
// observer stream needs exactly one thing a generic SSE library doesn't
// give for free: filtering and re-shaping our own bus.Subscriber callback
// into the handful of named event kinds (world_event, state_update,
// agent:thinking, agent:chunk, agent:done, simulation_ended) the protocol
// promises. That shaping logic would sit on top of any library just the
// same, so the library buys nothing beyond what net/http already gives a
// flusher-capable ResponseWriter.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roundtable/engine/internal/logging"
	"github.com/roundtable/engine/pkg/types"
)

const (
	// sseHeartbeatInterval keeps idle connections (and any intermediate
	// proxy) from timing out a session with long gaps between turns.
	sseHeartbeatInterval = 30 * time.Second

	// maxFullStateEvents bounds how much history a reconnecting observer
	// can ask to be replayed in one go.
	maxFullStateEvents = 200
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprint(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// stateUpdate mirrors a SessionState down to the fields an observer's
// live view actually needs; CurrentSpeakerID and Tick name the moment the
// update was taken so a client can tell two updates apart even when
// nothing else changed.
type stateUpdate struct {
	Status           types.Phase `json:"status"`
	CurrentRound     int         `json:"currentRound"`
	CurrentSpeakerID string      `json:"currentSpeakerId,omitempty"`
	Tick             uint64      `json:"tick"`
}

func newStateUpdate(state *types.SessionState, log interface{ GetCurrentSequence() uint64 }) stateUpdate {
	return stateUpdate{
		Status:           state.Phase,
		CurrentRound:     state.CurrentRound,
		CurrentSpeakerID: state.CurrentSpeaker,
		Tick:             log.GetCurrentSequence(),
	}
}

// sessionEvents handles the SSE stream for one session: GET
// /session/{sessionID}/events. On connect it sends a state_update (and,
// if requestFullState=true, a full_state replay capped at
// maxFullStateEvents persisted events), then streams a world_event plus a
// refreshed state_update for every event the session appends, and a
// simulation_ended once the session reaches a terminal phase.
func (srv *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := srv.mgr.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	log, err := srv.mgr.Log(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent("state_update", newStateUpdate(state, log)); err != nil {
		return
	}

	if requestFullState, _ := strconv.ParseBool(r.URL.Query().Get("requestFullState")); requestFullState {
		if err := sse.writeEvent("full_state", log.GetRecent(maxFullStateEvents)); err != nil {
			return
		}
	}

	events := make(chan types.Event, 16)
	unsub := log.Bus().SubscribeToSession(sessionID, func(e types.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().Str("sessionID", sessionID).Str("eventType", string(e.Type)).
				Msg("SSE session event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if terminal, stop := srv.deliverSessionEvent(sse, sessionID, e); stop || terminal != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// deliverSessionEvent writes the SSE frames for one bus event and reports
// whether the stream should now close (the session ended or aborted, or a
// write failed and the client is presumed gone).
func (srv *Server) deliverSessionEvent(sse *sseWriter, sessionID string, e types.Event) (writeErr error, stop bool) {
	if e.Transient {
		switch e.Type {
		case types.EventSpeechStart:
			writeErr = sse.writeEvent("agent:thinking", e)
		case types.EventSpeechChunk:
			writeErr = sse.writeEvent("agent:chunk", e)
		default:
			writeErr = sse.writeEvent(string(e.Type), e)
		}
		return writeErr, writeErr != nil
	}

	if err := sse.writeEvent("world_event", e); err != nil {
		return err, true
	}
	if e.Type == types.EventSpeechComplete {
		if err := sse.writeEvent("agent:done", e); err != nil {
			return err, true
		}
	}

	state, err := srv.mgr.Get(sessionID)
	if err != nil {
		return err, true
	}
	log, err := srv.mgr.Log(sessionID)
	if err != nil {
		return err, true
	}
	if err := sse.writeEvent("state_update", newStateUpdate(state, log)); err != nil {
		return err, true
	}

	if e.Type == types.EventSessionEnded || e.Type == types.EventSessionAborted {
		sse.writeEvent("simulation_ended", map[string]any{"sessionID": sessionID, "status": state.Phase})
		return nil, true
	}
	return nil, false
}
