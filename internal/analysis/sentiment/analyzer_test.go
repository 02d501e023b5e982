package sentiment

import "testing"

func TestAnalyzeBuckets(t *testing.T) {
	cases := []struct {
		utterance string
		want      Label
	}{
		{"I feel much better today, thanks", Positive},
		{"the pain is worse and I feel dizzy", Negative},
		{"I'm really worried, what if it is serious?", Anxious},
		{"the pain is unbearable, help me", Distressed},
		{"it started on Tuesday", Neutral},
		{"", Neutral},
	}

	for _, tc := range cases {
		got := Analyze(tc.utterance)
		if got.Sentiment != tc.want {
			t.Fatalf("Analyze(%q) = %s, want %s", tc.utterance, got.Sentiment, tc.want)
		}
	}
}

func TestAnalyzeDistressOutranksNegative(t *testing.T) {
	got := Analyze("the pain is unbearable")
	if got.Sentiment != Distressed {
		t.Fatalf("expected distressed, got %s", got.Sentiment)
	}
}

func TestDetectConcealedDistress(t *testing.T) {
	ctx := Detect("honestly the pain is unbearable", "happy")

	if !ctx.MismatchDetected {
		t.Fatal("expected mismatch for happy face with distressed words")
	}
	if ctx.MismatchType != MismatchConcealedDistress {
		t.Fatalf("unexpected mismatch type: %s", ctx.MismatchType)
	}
	if ctx.TextSentiment != string(Distressed) {
		t.Fatalf("unexpected text sentiment: %s", ctx.TextSentiment)
	}
	if ctx.Confidence <= 0.5 {
		t.Fatalf("expected confidence above the mismatch gate, got %f", ctx.Confidence)
	}
}

func TestDetectGuardedPositive(t *testing.T) {
	ctx := Detect("I'm feeling much better, really", "sad")

	if !ctx.MismatchDetected {
		t.Fatal("expected mismatch for sad face with positive words")
	}
	if ctx.MismatchType != MismatchGuardedPositive {
		t.Fatalf("unexpected mismatch type: %s", ctx.MismatchType)
	}
}

func TestDetectNoMismatchForNeutralSpeech(t *testing.T) {
	ctx := Detect("it started three days ago", "sad")

	if ctx.MismatchDetected {
		t.Fatal("neutral speech must not trigger a mismatch")
	}
	if ctx.TextSentiment != string(Neutral) {
		t.Fatalf("unexpected sentiment: %s", ctx.TextSentiment)
	}
}

func TestDetectAlignedEmotions(t *testing.T) {
	ctx := Detect("the pain is getting worse", "sad")

	if ctx.MismatchDetected {
		t.Fatal("matching face and words must not trigger a mismatch")
	}
}
