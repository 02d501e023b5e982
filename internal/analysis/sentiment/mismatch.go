package sentiment

import (
	"github.com/docvisit/backend/internal/model/consult"
)

// Mismatch types reported when spoken sentiment and facial emotion diverge.
const (
	MismatchConcealedDistress = "concealed_distress"
	MismatchGuardedPositive   = "guarded_positive"
)

var positiveFacial = map[string]bool{
	"happy":   true,
	"calm":    true,
	"content": true,
	"relaxed": true,
	"neutral": true,
}

var negativeFacial = map[string]bool{
	"sad":     true,
	"angry":   true,
	"fearful": true,
	"anxious": true,
	"disgust": true,
	"pain":    true,
}

// Detect derives an EmotionContext from the spoken text and the facial
// emotion label. It is the local stand-in used when the external mismatch
// analyzer sent nothing; a caller-supplied context always takes precedence.
func Detect(utterance, facialEmotion string) *consult.EmotionContext {
	decision := Analyze(utterance)

	ctx := &consult.EmotionContext{
		TextSentiment: string(decision.Sentiment),
		Confidence:    confidenceFor(decision.Score),
	}

	if decision.Sentiment == Neutral {
		return ctx
	}

	switch {
	case positiveFacial[facialEmotion] && spokenNegative(decision.Sentiment):
		ctx.MismatchDetected = true
		ctx.MismatchType = MismatchConcealedDistress
	case negativeFacial[facialEmotion] && decision.Sentiment == Positive:
		ctx.MismatchDetected = true
		ctx.MismatchType = MismatchGuardedPositive
	}

	return ctx
}

func spokenNegative(label Label) bool {
	return label == Negative || label == Anxious || label == Distressed
}

// confidenceFor maps a raw keyword score onto [0.3, 0.95].
func confidenceFor(score int) float64 {
	if score <= 0 {
		return 0.3
	}
	confidence := 0.35 + float64(score)*0.1
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
