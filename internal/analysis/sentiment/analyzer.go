package sentiment

import "strings"

// Label classifies the sentiment carried by the patient's words, as opposed
// to the facial emotion detected by the camera pipeline.
type Label string

const (
	Neutral    Label = "neutral"
	Positive   Label = "positive"
	Negative   Label = "negative"
	Anxious    Label = "anxious"
	Distressed Label = "distressed"
)

// Decision is the outcome of scoring one utterance.
type Decision struct {
	Sentiment Label
	Score     int
}

var keywordBuckets = map[Label][]string{
	Positive: {
		"better", "improving", "improved", "great", "good", "fine", "relieved",
		"thank", "thanks", "happy", "glad", "no pain", "much better", "recovering",
	},
	Negative: {
		"worse", "bad", "terrible", "awful", "pain", "hurts", "hurting", "ache",
		"sick", "nausea", "tired", "exhausted", "can't sleep", "cannot sleep",
		"dizzy", "weak", "sore", "uncomfortable", "miserable",
	},
	Anxious: {
		"worried", "worry", "anxious", "anxiety", "scared", "afraid", "nervous",
		"stress", "stressed", "panic", "what if", "is it serious", "am i dying",
		"concerned", "frightened",
	},
	Distressed: {
		"unbearable", "can't take", "cannot take", "crying", "hopeless", "alone",
		"desperate", "severe", "emergency", "help me", "worst", "agony",
		"overwhelmed", "breaking down",
	},
}

// Analyze scores an utterance against the keyword buckets and returns the
// dominant sentiment. Empty or unmatched text is neutral.
func Analyze(utterance string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return Decision{Sentiment: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	// Distress outranks plain negativity at equal score; a patient saying
	// "unbearable pain" should not land in the generic negative bucket.
	best := Neutral
	bestScore := 0
	for _, label := range []Label{Distressed, Anxious, Negative, Positive} {
		if s := scores[label]; s > bestScore {
			bestScore = s
			best = label
		}
	}

	return Decision{Sentiment: best, Score: bestScore}
}
