package config

import "testing"

func TestLoadFailsWithoutGeminiKey(t *testing.T) {
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected a fatal configuration error when the credential is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.AI.Provider != ProviderGemini {
		t.Fatalf("unexpected provider: %s", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gemini-2.5-pro" {
		t.Fatalf("unexpected default model: %s", cfg.AI.Model)
	}
	if cfg.Consult.HistoryWindow != DefaultHistoryWindow {
		t.Fatalf("unexpected history window: %d", cfg.Consult.HistoryWindow)
	}
	if cfg.Consult.FollowupHistoryFloor != DefaultFollowupHistoryFloor {
		t.Fatalf("unexpected follow-up floor: %d", cfg.Consult.FollowupHistoryFloor)
	}
	if cfg.Consult.AssessmentReminderTurns != DefaultAssessmentReminderTurns {
		t.Fatalf("unexpected reminder turns: %d", cfg.Consult.AssessmentReminderTurns)
	}
	if cfg.Consult.MismatchConfidenceThreshold != DefaultMismatchConfidenceThreshold {
		t.Fatalf("unexpected mismatch threshold: %f", cfg.Consult.MismatchConfidenceThreshold)
	}
}

func TestConsultOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CONSULT_HISTORY_WINDOW", "10")
	t.Setenv("CONSULT_MISMATCH_THRESHOLD", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Consult.HistoryWindow != 10 {
		t.Fatalf("override ignored: %d", cfg.Consult.HistoryWindow)
	}
	if cfg.Consult.MismatchConfidenceThreshold != 0.7 {
		t.Fatalf("override ignored: %f", cfg.Consult.MismatchConfidenceThreshold)
	}
}
