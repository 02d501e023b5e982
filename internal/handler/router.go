package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	consulthandler "github.com/docvisit/backend/internal/handler/consult"
	"github.com/docvisit/backend/internal/handler/live"
	"github.com/docvisit/backend/internal/handler/stream"
	middlewarePkg "github.com/docvisit/backend/internal/middleware"
	"github.com/docvisit/backend/internal/model/consult"
	consultservice "github.com/docvisit/backend/internal/service/consult"
	"github.com/docvisit/backend/internal/service/doctor"
	"github.com/docvisit/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(consultSvc *consultservice.Service, doctorSvc *doctor.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	consultHandler := consulthandler.New(consultSvc, doctorSvc)
	streamHandler := stream.New(doctorSvc)
	liveHandler := live.New(doctorSvc, consultSvc)

	r.Route("/api", func(api chi.Router) {
		consultHandler.RegisterRoutes(api)
		liveHandler.RegisterRoutes(api)

		// Streaming turn: message and emotion arrive as query parameters
		// because EventSource cannot send a body.
		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			query := r.URL.Query()

			message := query.Get("message")
			if message == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			turn := consult.TurnInput{
				Message: message,
				Emotion: query.Get("emotion"),
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, turn); err != nil {
				// Headers are already committed once streaming starts;
				// the handler has sent an SSE error frame by now.
				return
			}
		})
	})

	return r
}
