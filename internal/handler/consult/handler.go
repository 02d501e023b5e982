package consult

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docvisit/backend/internal/model/consult"
	consultservice "github.com/docvisit/backend/internal/service/consult"
	"github.com/docvisit/backend/internal/service/doctor"
	"github.com/docvisit/backend/pkg/utils"
)

// Handler exposes the consultation REST endpoints.
type Handler struct {
	consultSvc *consultservice.Service
	doctorSvc  *doctor.Service
}

// New creates the consultation handler.
func New(consultSvc *consultservice.Service, doctorSvc *doctor.Service) *Handler {
	return &Handler{
		consultSvc: consultSvc,
		doctorSvc:  doctorSvc,
	}
}

// RegisterRoutes mounts the consultation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/consultation", h.handleCreateSession)
	r.Post("/consultation/{sessionID}/message", h.handleMessage)
	r.Get("/consultation/{sessionID}/transcript", h.handleTranscript)
	r.Post("/consultation/{sessionID}/summary", h.handleSummary)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Age         int    `json:"age"`
		AgeCategory string `json:"ageCategory"`
	}

	// An empty body is a valid anonymous intake.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.consultSvc.CreateSession(r.Context(), payload.Age, payload.AgeCategory)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload consult.TurnInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.doctorSvc.Respond(r.Context(), sessionID, payload)
	if err != nil {
		if errors.Is(err, consultservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.consultSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, consultservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.doctorSvc.Summarize(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, consultservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, summary)
}
