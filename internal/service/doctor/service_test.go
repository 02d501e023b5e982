package doctor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docvisit/backend/internal/config"
	"github.com/docvisit/backend/internal/model/consult"
	consultstore "github.com/docvisit/backend/internal/service/consult"
)

// stubChatModel scripts the hosted model: reply i answers call i. Missing
// entries fall back to a generic follow-up question.
type stubChatModel struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	received [][]*schema.Message
}

func (m *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	m.received = append(m.received, input)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}

	reply := "Could you tell me more about your symptoms?"
	if idx < len(m.replies) {
		reply = m.replies[idx]
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(msg, nil)
	sw.Close()
	return sr, nil
}

func (m *stubChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func (m *stubChatModel) systemPromptOfCall(t *testing.T, idx int) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx >= len(m.received) {
		t.Fatalf("call %d never happened, saw %d calls", idx, len(m.received))
	}
	input := m.received[idx]
	if len(input) == 0 || input[0].Role != schema.System {
		t.Fatalf("call %d has no leading system message", idx)
	}
	return input[0].Content
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{StreamResponse: true}
}

func testTuning() config.ConsultConfig {
	return config.ConsultConfig{
		HistoryWindow:               config.DefaultHistoryWindow,
		FollowupHistoryFloor:        config.DefaultFollowupHistoryFloor,
		AssessmentReminderTurns:     config.DefaultAssessmentReminderTurns,
		MismatchConfidenceThreshold: config.DefaultMismatchConfidenceThreshold,
	}
}

func newTestDoctor(t *testing.T, chatModel model.ChatModel) (*Service, *consultstore.Service, string) {
	t.Helper()
	ctx := context.Background()

	store := consultstore.NewService()
	svc, err := NewService(ctx, store, chatModel, testAIConfig(), testTuning())
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	session, err := store.CreateSession(ctx, 0, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	return svc, store, session.ID
}

func TestRespondMasksGenerationFailure(t *testing.T) {
	chatModel := &stubChatModel{errs: []error{errors.New("rpc timeout")}}
	svc, _, sessionID := newTestDoctor(t, chatModel)

	result, err := svc.Respond(context.Background(), sessionID, consult.TurnInput{Message: "I feel dizzy", Emotion: "neutral"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	if result.Text == "" {
		t.Fatal("expected non-empty text on generation failure")
	}
	if result.Text != fallbackText[failureGeneration] {
		t.Fatalf("unexpected fallback text: %q", result.Text)
	}
	if result.Err == "" {
		t.Fatal("expected diagnostic error field to be set")
	}
	if !result.FollowupNeeded {
		t.Fatal("expected follow-up while history is short")
	}
}

func TestRespondAppendsHistoryInCallOrder(t *testing.T) {
	chatModel := &stubChatModel{replies: []string{"Reply one?", "Reply two?", "Reply three?"}}
	svc, store, sessionID := newTestDoctor(t, chatModel)
	ctx := context.Background()

	inputs := []string{"first", "second", "third"}
	for _, msg := range inputs {
		if _, err := svc.Respond(ctx, sessionID, consult.TurnInput{Message: msg}); err != nil {
			t.Fatalf("Respond err: %v", err)
		}
	}

	transcript, err := store.LoadTranscript(ctx, sessionID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}

	if len(transcript) != 2*len(inputs) {
		t.Fatalf("expected %d messages, got %d", 2*len(inputs), len(transcript))
	}
	for i, msg := range inputs {
		patient := transcript[2*i]
		assistant := transcript[2*i+1]
		if patient.Role != consult.RolePatient || patient.Content != msg {
			t.Fatalf("turn %d patient entry wrong: %+v", i, patient)
		}
		if assistant.Role != consult.RoleAssistant {
			t.Fatalf("turn %d assistant entry wrong: %+v", i, assistant)
		}
	}
}

func TestRespondFollowupHeuristic(t *testing.T) {
	replies := []string{
		"Noted.", "Noted.", "Noted.",
		"Rest and you will recover soon.",
		"Does the pain spread to your arm?",
	}
	chatModel := &stubChatModel{replies: replies}
	svc, _, sessionID := newTestDoctor(t, chatModel)
	ctx := context.Background()

	// First three turns: no question mark, but history < 6 forces follow-up.
	for i := 0; i < 3; i++ {
		result, err := svc.Respond(ctx, sessionID, consult.TurnInput{Message: "still hurts"})
		if err != nil {
			t.Fatalf("Respond err: %v", err)
		}
		if !result.FollowupNeeded {
			t.Fatalf("turn %d: expected follow-up while history < 6", i)
		}
	}

	// Fourth turn: history is 6 already and text has no question mark.
	result, err := svc.Respond(ctx, sessionID, consult.TurnInput{Message: "ok"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if result.FollowupNeeded {
		t.Fatal("expected no follow-up after history filled and no question asked")
	}

	// Fifth turn: a question mark forces follow-up regardless of history.
	result, err = svc.Respond(ctx, sessionID, consult.TurnInput{Message: "chest pain"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if !result.FollowupNeeded {
		t.Fatal("expected follow-up when reply contains a question mark")
	}
}

func TestRespondStripsEndMarker(t *testing.T) {
	chatModel := &stubChatModel{replies: []string{"Drink water. " + EndMarker}}
	svc, _, sessionID := newTestDoctor(t, chatModel)

	result, err := svc.Respond(context.Background(), sessionID, consult.TurnInput{
		Message:     "I have a headache",
		Emotion:     "neutral",
		AgeCategory: "Teenager",
	})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	if result.Text != "Drink water." {
		t.Fatalf("expected marker stripped, got %q", result.Text)
	}
	if !result.ShouldEndConsultation {
		t.Fatal("expected end-of-consultation flag")
	}
	if !result.FollowupNeeded {
		t.Fatal("expected follow-up: no question mark but history < 6")
	}
}

func TestRespondUnknownSession(t *testing.T) {
	svc, _, _ := newTestDoctor(t, &stubChatModel{})

	if _, err := svc.Respond(context.Background(), "missing", consult.TurnInput{Message: "hello"}); !errors.Is(err, consultstore.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSystemPromptCarriesTurnContext(t *testing.T) {
	chatModel := &stubChatModel{}
	svc, _, sessionID := newTestDoctor(t, chatModel)
	ctx := context.Background()

	if _, err := svc.Respond(ctx, sessionID, consult.TurnInput{
		Message:     "my knees hurt when I run",
		Emotion:     "sad",
		AgeCategory: "Senior",
	}); err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	prompt := chatModel.systemPromptOfCall(t, 0)
	if !strings.Contains(prompt, "Current patient emotion detected: sad") {
		t.Fatalf("missing emotion line in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, ageGuidance["Senior"]) {
		t.Fatalf("missing senior age guidance in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, assessmentReminder) {
		t.Fatal("assessment reminder should not appear on the first turn")
	}
}

func TestSystemPromptAssessmentReminderAfterTwoTurns(t *testing.T) {
	chatModel := &stubChatModel{}
	svc, _, sessionID := newTestDoctor(t, chatModel)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Respond(ctx, sessionID, consult.TurnInput{Message: "it still aches"}); err != nil {
			t.Fatalf("Respond err: %v", err)
		}
	}

	if strings.Contains(chatModel.systemPromptOfCall(t, 1), assessmentReminder) {
		t.Fatal("reminder should wait for two full patient turns")
	}
	if !strings.Contains(chatModel.systemPromptOfCall(t, 2), assessmentReminder) {
		t.Fatal("expected assessment reminder on the third turn")
	}
}

func TestMismatchNoteGatedByConfidence(t *testing.T) {
	svc, _, _ := newTestDoctor(t, &stubChatModel{})

	lowConfidence := consult.TurnInput{
		Message: "I am fine",
		Emotion: "happy",
		EmotionContext: &consult.EmotionContext{
			MismatchDetected: true,
			Confidence:       0.4,
			TextSentiment:    "negative",
		},
	}
	if prompt := svc.buildSystemPrompt(lowConfidence, nil); strings.Contains(prompt, "Note:") {
		t.Fatal("mismatch note should be suppressed at confidence 0.4")
	}

	confident := lowConfidence
	confident.EmotionContext = &consult.EmotionContext{
		MismatchDetected: true,
		Confidence:       0.8,
		MismatchType:     "concealed_distress",
		TextSentiment:    "distressed",
	}
	prompt := svc.buildSystemPrompt(confident, nil)
	if !strings.Contains(prompt, "downplaying") {
		t.Fatalf("expected concealed-distress wording, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "distressed") {
		t.Fatalf("expected text sentiment in note, got:\n%s", prompt)
	}
}

func TestNormalizeTurnDerivesMissingContext(t *testing.T) {
	svc, store, _ := newTestDoctor(t, &stubChatModel{})
	ctx := context.Background()

	session, err := store.CreateSession(ctx, 70, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	turn := svc.normalizeTurn(session, consult.TurnInput{
		Message: "the pain is unbearable, help me",
		Emotion: "happy",
	})

	if turn.AgeCategory != "Senior" {
		t.Fatalf("expected age 70 bucketed as Senior, got %q", turn.AgeCategory)
	}
	if turn.EmotionContext == nil {
		t.Fatal("expected derived emotion context")
	}
	if !turn.EmotionContext.MismatchDetected {
		t.Fatal("expected mismatch between happy face and distressed words")
	}

	// A caller-supplied context is never replaced.
	supplied := &consult.EmotionContext{TextSentiment: "neutral"}
	turn = svc.normalizeTurn(session, consult.TurnInput{Message: "fine", Emotion: "sad", EmotionContext: supplied})
	if turn.EmotionContext != supplied {
		t.Fatal("supplied emotion context was replaced")
	}
}
