package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures every API route this transport exposes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/start", s.startSession)
			r.Post("/control", s.sessionControl)

			r.Post("/speak", s.speakRequestHandler)

			r.Route("/intents", func(r chi.Router) {
				r.Get("/", s.listIntents)
				r.Post("/", s.submitIntent)
				r.Delete("/{intentID}", s.withdrawIntent)
			})

			r.Route("/moderator", func(r chi.Router) {
				r.Post("/call", s.moderatorCall)
				r.Post("/respond", s.moderatorRequestResponse)
			})

			r.Route("/intervention", func(r chi.Router) {
				r.Get("/", s.getIntervention)
				r.Put("/", s.setIntervention)
			})

			r.Route("/outline", func(r chi.Router) {
				r.Get("/", s.getOutline)
				r.Post("/", s.generateOutline)
			})
			r.Post("/judge", s.judgeScore)
			r.Post("/summary", s.generateSummary)

			// join_session/leave_session are implicit: connecting opens
			// the stream, the client disconnecting (request context
			// cancellation) tears it down.
			r.Get("/events", s.sessionEvents)
		})
	})

	r.Post("/scenario/validate", s.validateScenario)
}
