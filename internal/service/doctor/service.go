package doctor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/docvisit/backend/internal/analysis/agegroup"
	"github.com/docvisit/backend/internal/analysis/sentiment"
	"github.com/docvisit/backend/internal/config"
	"github.com/docvisit/backend/internal/model/consult"
	consultstore "github.com/docvisit/backend/internal/service/consult"
)

// runner is the slice of compose.Runnable the service needs. Tests swap in
// a scripted implementation.
type runner interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
	Stream(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.StreamReader[*schema.Message], error)
}

// Service is the conversation client: it turns one patient turn into a
// prompt, calls the hosted model, and normalizes the reply. Generation
// failures never escape; the patient always gets a usable response.
type Service struct {
	store     *consultstore.Service
	chain     runner
	tuning    config.ConsultConfig
	streaming bool
}

// NewService compiles the generation chain over the supplied chat model.
func NewService(ctx context.Context, store *consultstore.Service, chatModel model.ChatModel, aiCfg config.AIConfig, tuning config.ConsultConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile consultation chain: %w", err)
	}

	return &Service{
		store:     store,
		chain:     runnable,
		tuning:    tuning,
		streaming: aiCfg.StreamResponse,
	}, nil
}

// StreamingEnabled reports whether SSE delta streaming is configured.
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// Respond handles one consultation turn. It only errors for an unknown
// session; model failures are masked with a canned reply and surfaced in
// the result's Err field.
func (s *Service) Respond(ctx context.Context, sessionID string, in consult.TurnInput) (consult.ResponseResult, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return consult.ResponseResult{}, err
	}

	turn := s.normalizeTurn(session, in)

	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return consult.ResponseResult{}, err
	}

	var raw string
	msg, genErr := s.chain.Invoke(ctx, s.buildChainInput(turn, transcript))
	if genErr == nil && msg != nil {
		raw = msg.Content
	}

	return s.finalizeTurn(ctx, sessionID, turn, transcript, raw, genErr)
}

// StreamTurn opens a streaming generation call for one turn. The caller
// must collect the chunks and hand the raw text to FinalizeTurn.
func (s *Service) StreamTurn(ctx context.Context, sessionID string, in consult.TurnInput) (*schema.StreamReader[*schema.Message], error) {
	if !s.streaming {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turn := s.normalizeTurn(session, in)

	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(turn, transcript))
	if err != nil {
		return nil, fmt.Errorf("failed to stream consultation chain: %w", err)
	}
	return stream, nil
}

// GenerateTurn runs the blocking generation for one turn without touching
// history. Callers pair it with FinalizeTurn; Respond does both.
func (s *Service) GenerateTurn(ctx context.Context, sessionID string, in consult.TurnInput) (string, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	turn := s.normalizeTurn(session, in)

	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}

	msg, err := s.chain.Invoke(ctx, s.buildChainInput(turn, transcript))
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// FinalizeTurn applies the turn post-processing to raw model output (or a
// generation error) and appends both messages to the history. Streaming
// callers use it after collecting the chunks.
func (s *Service) FinalizeTurn(ctx context.Context, sessionID string, in consult.TurnInput, raw string, genErr error) (consult.ResponseResult, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return consult.ResponseResult{}, err
	}

	turn := s.normalizeTurn(session, in)

	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return consult.ResponseResult{}, err
	}

	return s.finalizeTurn(ctx, sessionID, turn, transcript, raw, genErr)
}

// finalizeTurn is the shared tail of a turn: end-marker handling, fallback
// substitution, history append, and the follow-up heuristic. transcript is
// the history as it stood before this turn.
func (s *Service) finalizeTurn(ctx context.Context, sessionID string, turn consult.TurnInput, transcript []consult.Message, raw string, genErr error) (consult.ResponseResult, error) {
	var result consult.ResponseResult

	text := strings.TrimSpace(raw)
	if strings.Contains(text, EndMarker) {
		result.ShouldEndConsultation = true
		text = strings.TrimSpace(strings.ReplaceAll(text, EndMarker, ""))
	}

	if genErr != nil || text == "" {
		if genErr != nil {
			result.Err = genErr.Error()
		} else {
			result.Err = "model returned an empty reply"
		}
		log.Printf("[doctor] generation failed for session=%s: %s", sessionID, result.Err)
		text = fallbackText[failureGeneration]
	}
	result.Text = text

	if err := s.store.SaveMessage(ctx, consult.Message{
		SessionID: sessionID,
		Role:      consult.RolePatient,
		Content:   turn.Message,
		Emotion:   turn.Emotion,
	}); err != nil {
		return consult.ResponseResult{}, err
	}
	if err := s.store.SaveMessage(ctx, consult.Message{
		SessionID: sessionID,
		Role:      consult.RoleAssistant,
		Content:   text,
	}); err != nil {
		return consult.ResponseResult{}, err
	}

	historyLen := len(transcript) + 2
	result.FollowupNeeded = strings.Contains(text, "?") || historyLen < s.tuning.FollowupHistoryFloor

	return result, nil
}

// normalizeTurn fills the gaps external collaborators may leave: session
// intake supplies missing age hints, the numeric age is bucketed when no
// category came along, and the local sentiment analyzer stands in for an
// absent mismatch record. A caller-supplied EmotionContext always wins.
func (s *Service) normalizeTurn(session consult.Session, in consult.TurnInput) consult.TurnInput {
	turn := in

	if turn.Age == 0 {
		turn.Age = session.Age
	}
	if turn.AgeCategory == "" {
		turn.AgeCategory = session.AgeCategory
	}
	if turn.AgeCategory == "" {
		turn.AgeCategory = agegroup.Categorize(turn.Age)
	}
	if turn.Emotion == "" {
		turn.Emotion = "neutral"
	}
	if turn.EmotionContext == nil {
		turn.EmotionContext = sentiment.Detect(turn.Message, turn.Emotion)
	}

	return turn
}

// buildChainInput assembles the generation chain input for one turn.
func (s *Service) buildChainInput(turn consult.TurnInput, transcript []consult.Message) map[string]any {
	return map[string]any{
		"system":  s.buildSystemPrompt(turn, transcript),
		"history": s.buildHistoryMessages(transcript),
		"query":   turn.Message,
	}
}

// buildSystemPrompt layers the turn context onto the doctor persona: age
// guidance, the detected facial emotion, an assessment reminder once the
// patient has had enough turns, and the mismatch note when the analyzer is
// confident enough.
func (s *Service) buildSystemPrompt(turn consult.TurnInput, transcript []consult.Message) string {
	var builder strings.Builder
	builder.WriteString(systemPrompt)

	if guidance := ageGuidance[turn.AgeCategory]; guidance != "" {
		builder.WriteString("\n\n")
		builder.WriteString(guidance)
	}

	builder.WriteString("\n\nCurrent patient emotion detected: ")
	builder.WriteString(turn.Emotion)

	if patientTurns(transcript) >= s.tuning.AssessmentReminderTurns {
		builder.WriteString("\n\n")
		builder.WriteString(assessmentReminder)
	}

	if note := s.mismatchNote(turn); note != "" {
		builder.WriteString("\n\n")
		builder.WriteString(note)
	}

	return builder.String()
}

func (s *Service) mismatchNote(turn consult.TurnInput) string {
	emoCtx := turn.EmotionContext
	if emoCtx == nil || !emoCtx.MismatchDetected || emoCtx.Confidence <= s.tuning.MismatchConfidenceThreshold {
		return ""
	}

	wording, ok := mismatchNotes[emoCtx.MismatchType]
	if !ok {
		wording = mismatchNotes[""]
	}

	spoken := emoCtx.TextSentiment
	if spoken == "" {
		spoken = "different feelings"
	}
	return fmt.Sprintf(wording, turn.Emotion, spoken)
}

// buildHistoryMessages replays the trailing history window as chat turns.
func (s *Service) buildHistoryMessages(transcript []consult.Message) []*schema.Message {
	if len(transcript) == 0 {
		return nil
	}

	startIdx := 0
	if len(transcript) > s.tuning.HistoryWindow {
		startIdx = len(transcript) - s.tuning.HistoryWindow
	}

	history := make([]*schema.Message, 0, len(transcript)-startIdx)
	for _, msg := range transcript[startIdx:] {
		switch msg.Role {
		case consult.RolePatient:
			history = append(history, schema.UserMessage(msg.Content))
		case consult.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

func patientTurns(transcript []consult.Message) int {
	count := 0
	for _, msg := range transcript {
		if msg.Role == consult.RolePatient {
			count++
		}
	}
	return count
}
