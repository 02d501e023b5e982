package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Config carries the generation parameters forwarded on every Gemini call.
// Nil pointer fields fall back to the API defaults.
type Config struct {
	APIKey          string
	Model           string
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
	CandidateCount  int32
	// SafetyThreshold is applied to every harm category. Empty means the
	// API default.
	SafetyThreshold string
}

// ChatModel adapts the Gemini API to the eino chat model contract so the
// generation chain stays provider-agnostic.
type ChatModel struct {
	client *genai.Client
	cfg    Config
}

var _ model.ChatModel = (*ChatModel)(nil)

// NewChatModel builds a Gemini-backed chat model. The API key must already
// be validated by the caller.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &ChatModel{client: client, cfg: cfg}, nil
}

// Generate performs a single blocking generation call.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	contents, genCfg := m.buildRequest(input)

	resp, err := m.client.Models.GenerateContent(ctx, m.cfg.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		// Blocked or empty candidates surface as an error so the caller's
		// fallback path kicks in.
		return nil, fmt.Errorf("gemini returned no usable candidate")
	}

	return schema.AssistantMessage(text, nil), nil
}

// Stream performs a streaming generation call, forwarding chunks as
// assistant messages.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	contents, genCfg := m.buildRequest(input)

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer sw.Close()
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.cfg.Model, contents, genCfg) {
			if err != nil {
				sw.Send(nil, fmt.Errorf("gemini stream failed: %w", err))
				return
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

// BindTools is unsupported; the consultation chain never registers tools.
func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return fmt.Errorf("gemini chat model: tool binding not supported")
}

// buildRequest splits eino messages into Gemini contents plus the request
// config. System messages become the system instruction.
func (m *ChatModel) buildRequest(input []*schema.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:     m.cfg.Temperature,
		TopP:            m.cfg.TopP,
		TopK:            m.cfg.TopK,
		MaxOutputTokens: m.cfg.MaxOutputTokens,
		CandidateCount:  m.cfg.CandidateCount,
		SafetySettings:  safetySettings(m.cfg.SafetyThreshold),
	}

	var systemParts []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			systemParts = append(systemParts, msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	if len(systemParts) > 0 {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	return contents, genCfg
}

// safetySettings expands one configured threshold across the harm
// categories the consultation cares about.
func safetySettings(threshold string) []*genai.SafetySetting {
	level := parseHarmThreshold(threshold)
	if level == "" {
		return nil
	}

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: level,
		})
	}
	return settings
}

func parseHarmThreshold(raw string) genai.HarmBlockThreshold {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "block_none":
		return genai.HarmBlockThresholdBlockNone
	case "low", "block_low_and_above":
		return genai.HarmBlockThresholdBlockLowAndAbove
	case "medium", "block_medium_and_above":
		return genai.HarmBlockThresholdBlockMediumAndAbove
	case "high", "block_only_high":
		return genai.HarmBlockThresholdBlockOnlyHigh
	default:
		return ""
	}
}
