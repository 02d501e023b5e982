package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/docvisit/backend/internal/llm"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Consult ConsultConfig
}

// Load reads the configuration from environment variables. A missing model
// credential is a fatal configuration error.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	consult, err := loadConsultConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Consult: consult}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" and "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Model providers.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// AIConfig describes the hosted generation model and its sampling
// parameters.
type AIConfig struct {
	Provider        string
	APIKey          string
	Model           string
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxTokens       *int
	CandidateCount  *int
	SafetyThreshold string
	StreamResponse  bool

	// Ark-specific credentials, only read when Provider is "ark".
	ArkAccessKey string
	ArkSecretKey string
	ArkBaseURL   string
	ArkRegion    string
}

// NewChatModel creates the configured provider's chat model instance.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	switch c.Provider {
	case ProviderArk:
		return c.newArkChatModel(ctx)
	case ProviderGemini:
		return c.newGeminiChatModel(ctx)
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", c.Provider)
	}
}

func (c AIConfig) newGeminiChatModel(ctx context.Context) (model.ChatModel, error) {
	cfg := llm.Config{
		APIKey:          c.APIKey,
		Model:           c.Model,
		Temperature:     toFloat32(c.Temperature),
		TopP:            toFloat32(c.TopP),
		SafetyThreshold: c.SafetyThreshold,
	}
	if c.TopK != nil {
		val := float32(*c.TopK)
		cfg.TopK = &val
	}
	if c.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*c.MaxTokens)
	}
	if c.CandidateCount != nil {
		cfg.CandidateCount = int32(*c.CandidateCount)
	}

	return llm.NewChatModel(ctx, cfg)
}

func (c AIConfig) newArkChatModel(ctx context.Context) (model.ChatModel, error) {
	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.APIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: toFloat32(c.Temperature),
		TopP:        toFloat32(c.TopP),
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	topK, err := parseOptionalIntEnv("AI_TOP_K")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_OUTPUT_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	candidateCount, err := parseOptionalIntEnv("AI_CANDIDATE_COUNT")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:        provider,
		Temperature:     temperature,
		TopP:            topP,
		TopK:            topK,
		MaxTokens:       maxTokens,
		CandidateCount:  candidateCount,
		SafetyThreshold: getEnvOrDefault("AI_SAFETY_THRESHOLD", "medium"),
		StreamResponse:  stream,
	}

	switch provider {
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if cfg.APIKey == "" {
			return AIConfig{}, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-pro")
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.ArkAccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.ArkSecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.ArkBaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.ArkRegion = getEnvOrDefault("ARK_REGION", "cn-beijing")
		if cfg.Model == "" || (cfg.APIKey == "" && (cfg.ArkAccessKey == "" || cfg.ArkSecretKey == "")) {
			return AIConfig{}, fmt.Errorf("ark provider needs ARK_MODEL plus ARK_API_KEY or an AK/SK pair")
		}
	default:
		return AIConfig{}, fmt.Errorf("unknown AI_PROVIDER %q", provider)
	}

	return cfg, nil
}

// Tuning defaults carried over from the original consultation flow. The
// values are deliberate product choices, not derived limits.
const (
	DefaultHistoryWindow               = 6
	DefaultFollowupHistoryFloor        = 6
	DefaultAssessmentReminderTurns     = 2
	DefaultMismatchConfidenceThreshold = 0.5
)

// ConsultConfig tunes prompt assembly and the follow-up heuristic.
type ConsultConfig struct {
	// HistoryWindow is how many trailing messages are replayed in the prompt.
	HistoryWindow int
	// FollowupHistoryFloor forces the follow-up flag while the history is
	// still shorter than this.
	FollowupHistoryFloor int
	// AssessmentReminderTurns is the patient-turn count after which the
	// prompt nudges the model toward an assessment.
	AssessmentReminderTurns int
	// MismatchConfidenceThreshold gates the emotion-mismatch note.
	MismatchConfidenceThreshold float64
}

func loadConsultConfig() (ConsultConfig, error) {
	cfg := ConsultConfig{
		HistoryWindow:               DefaultHistoryWindow,
		FollowupHistoryFloor:        DefaultFollowupHistoryFloor,
		AssessmentReminderTurns:     DefaultAssessmentReminderTurns,
		MismatchConfidenceThreshold: DefaultMismatchConfidenceThreshold,
	}

	if override, err := parseOptionalIntEnv("CONSULT_HISTORY_WINDOW"); err != nil {
		return ConsultConfig{}, err
	} else if override != nil && *override >= 1 {
		cfg.HistoryWindow = *override
	}

	if override, err := parseOptionalIntEnv("CONSULT_FOLLOWUP_FLOOR"); err != nil {
		return ConsultConfig{}, err
	} else if override != nil && *override >= 0 {
		cfg.FollowupHistoryFloor = *override
	}

	if override, err := parseOptionalIntEnv("CONSULT_ASSESSMENT_TURNS"); err != nil {
		return ConsultConfig{}, err
	} else if override != nil && *override >= 0 {
		cfg.AssessmentReminderTurns = *override
	}

	if override, err := parseOptionalFloatEnv("CONSULT_MISMATCH_THRESHOLD"); err != nil {
		return ConsultConfig{}, err
	} else if override != nil && *override >= 0 {
		cfg.MismatchConfidenceThreshold = *override
	}

	return cfg, nil
}

func toFloat32(val *float64) *float32 {
	if val == nil {
		return nil
	}
	converted := float32(*val)
	return &converted
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
