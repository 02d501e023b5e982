package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/docvisit/backend/internal/model/consult"
	"github.com/docvisit/backend/internal/service/doctor"
	"github.com/docvisit/backend/pkg/utils"
)

// Handler streams doctor replies over Server-Sent Events.
type Handler struct {
	doctorSvc *doctor.Service
}

// New creates a stream handler.
func New(doctorSvc *doctor.Service) *Handler {
	return &Handler{doctorSvc: doctorSvc}
}

// Response is one SSE frame.
type Response struct {
	Event                 string `json:"event"`
	Content               string `json:"content,omitempty"`
	SessionID             string `json:"sessionId,omitempty"`
	FollowupNeeded        bool   `json:"followupNeeded,omitempty"`
	ShouldEndConsultation bool   `json:"shouldEndConsultation,omitempty"`
	Finished              bool   `json:"finished,omitempty"`
	Error                 string `json:"error,omitempty"`
}

// HandleStreamRequest streams one consultation turn. Delta frames carry the
// raw model chunks; the final message frame carries the post-processed
// reply, so end markers never reach the patient even mid-stream.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, turn consult.TurnInput) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	h.send(w, flusher, Response{Event: "start", SessionID: sessionID})

	raw, genErr := h.collectTurn(ctx, w, flusher, sessionID, turn)

	result, err := h.doctorSvc.FinalizeTurn(ctx, sessionID, turn, raw, genErr)
	if err != nil {
		h.send(w, flusher, Response{Event: "error", Error: err.Error()})
		return err
	}

	h.send(w, flusher, Response{
		Event:                 "message",
		SessionID:             sessionID,
		Content:               result.Text,
		FollowupNeeded:        result.FollowupNeeded,
		ShouldEndConsultation: result.ShouldEndConsultation,
		Error:                 result.Err,
	})
	h.send(w, flusher, Response{Event: "end", SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed turn for session=%s", sessionID)
	return nil
}

// collectTurn drives the generation call, forwarding delta frames while
// accumulating the raw text. When streaming is disabled it falls back to a
// single blocking generation. Generation errors are returned for the
// doctor service to mask, never written as SSE errors.
func (h *Handler) collectTurn(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, turn consult.TurnInput) (string, error) {
	if !h.doctorSvc.StreamingEnabled() {
		return h.doctorSvc.GenerateTurn(ctx, sessionID, turn)
	}

	stream, err := h.doctorSvc.StreamTurn(ctx, sessionID, turn)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.send(w, flusher, Response{Event: "delta", SessionID: sessionID, Content: chunk.Content})
		}
	}

	message, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return message.Content, nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response Response) {
	utils.SendSSEChunk(w, flusher, response)
}
