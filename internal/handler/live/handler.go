package live

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/docvisit/backend/internal/model/consult"
	consultservice "github.com/docvisit/backend/internal/service/consult"
	"github.com/docvisit/backend/internal/service/doctor"
	"github.com/docvisit/backend/pkg/utils"
)

// Handler runs the live consultation channel. The frontend keeps one
// socket open per visit and pushes emotion updates between patient turns,
// so each turn picks up the freshest camera reading.
type Handler struct {
	doctorSvc  *doctor.Service
	consultSvc *consultservice.Service
	upgrader   websocket.Upgrader
}

// New creates the websocket handler.
func New(doctorSvc *doctor.Service, consultSvc *consultservice.Service) *Handler {
	return &Handler{
		doctorSvc:  doctorSvc,
		consultSvc: consultSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingFrame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// emotionFrame mirrors the external analyzer's payload.
type emotionFrame struct {
	Emotion          string  `json:"emotion"`
	MismatchDetected bool    `json:"mismatchDetected"`
	Confidence       float64 `json:"confidence"`
	MismatchType     string  `json:"mismatchType"`
	TextSentiment    string  `json:"textSentiment"`
}

type messageFrame struct {
	Text string `json:"text"`
}

type configFrame struct {
	Age         int    `json:"age"`
	AgeCategory string `json:"ageCategory"`
}

// connectionState is the per-socket context applied to subsequent turns.
type connectionState struct {
	emotion     string
	emotionCtx  *consult.EmotionContext
	age         int
	ageCategory string
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.consultSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	state := &connectionState{}
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		switch frame.Type {
		case "config":
			h.handleConfig(conn, sessionID, state, frame.Data)
		case "emotion":
			h.handleEmotion(conn, sessionID, state, frame.Data)
		case "message":
			h.handleMessage(r, conn, sessionID, state, frame.Data)
		default:
			h.write(conn, sessionID, "error", map[string]string{"error": "unknown frame type: " + frame.Type})
		}
	}
}

func (h *Handler) handleConfig(conn *websocket.Conn, sessionID string, state *connectionState, data json.RawMessage) {
	var payload configFrame
	if err := json.Unmarshal(data, &payload); err != nil {
		h.write(conn, sessionID, "error", map[string]string{"error": "invalid config frame"})
		return
	}

	state.age = payload.Age
	state.ageCategory = payload.AgeCategory
	h.write(conn, sessionID, "ack", map[string]string{"applied": "config"})
}

func (h *Handler) handleEmotion(conn *websocket.Conn, sessionID string, state *connectionState, data json.RawMessage) {
	var payload emotionFrame
	if err := json.Unmarshal(data, &payload); err != nil {
		h.write(conn, sessionID, "error", map[string]string{"error": "invalid emotion frame"})
		return
	}

	state.emotion = payload.Emotion
	if payload.MismatchDetected || payload.TextSentiment != "" {
		state.emotionCtx = &consult.EmotionContext{
			MismatchDetected: payload.MismatchDetected,
			Confidence:       payload.Confidence,
			MismatchType:     payload.MismatchType,
			TextSentiment:    payload.TextSentiment,
		}
	} else {
		// A bare label resets any stale mismatch context; the doctor
		// service will fall back to its own sentiment reading.
		state.emotionCtx = nil
	}
}

func (h *Handler) handleMessage(r *http.Request, conn *websocket.Conn, sessionID string, state *connectionState, data json.RawMessage) {
	var payload messageFrame
	if err := json.Unmarshal(data, &payload); err != nil || payload.Text == "" {
		h.write(conn, sessionID, "error", map[string]string{"error": "invalid message frame"})
		return
	}

	turn := consult.TurnInput{
		Message:        payload.Text,
		Emotion:        state.emotion,
		Age:            state.age,
		AgeCategory:    state.ageCategory,
		EmotionContext: state.emotionCtx,
	}

	result, err := h.doctorSvc.Respond(r.Context(), sessionID, turn)
	if err != nil {
		h.write(conn, sessionID, "error", map[string]string{"error": err.Error()})
		return
	}

	// Mismatch context is single-use; the next turn needs a fresh reading.
	state.emotionCtx = nil

	h.write(conn, sessionID, "reply", result)

	if result.ShouldEndConsultation {
		summary, err := h.doctorSvc.Summarize(r.Context(), sessionID)
		if err != nil {
			log.Printf("[ws] summary failed for session=%s: %v", sessionID, err)
			return
		}
		h.write(conn, sessionID, "summary", summary)
	}
}

func (h *Handler) write(conn *websocket.Conn, sessionID, frameType string, data interface{}) {
	frame := outgoingFrame{
		Type:      frameType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
	}
}
