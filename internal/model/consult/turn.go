package consult

// EmotionContext is the optional record produced by the external
// emotion-mismatch analyzer. It is read-only input; no invariants are
// enforced on it here.
type EmotionContext struct {
	MismatchDetected bool    `json:"mismatchDetected"`
	Confidence       float64 `json:"confidence"`
	MismatchType     string  `json:"mismatchType,omitempty"`
	TextSentiment    string  `json:"textSentiment,omitempty"`
}

// TurnInput carries everything the frontend knows about one patient turn:
// the spoken text, the facial emotion label, and the optional age and
// mismatch context supplied by the external analyzers.
type TurnInput struct {
	Message        string          `json:"message"`
	Emotion        string          `json:"emotion"`
	Age            int             `json:"age,omitempty"`
	AgeCategory    string          `json:"ageCategory,omitempty"`
	EmotionContext *EmotionContext `json:"emotionContext,omitempty"`
}

// ResponseResult is produced fresh for every turn. Text is always non-empty,
// even when the upstream model call failed; Err then carries the diagnostic.
type ResponseResult struct {
	Text                  string `json:"text"`
	FollowupNeeded        bool   `json:"followupNeeded"`
	ShouldEndConsultation bool   `json:"shouldEndConsultation"`
	Err                   string `json:"error,omitempty"`
}

// ConsultationSummary is the end-of-visit report handed to the frontend.
type ConsultationSummary struct {
	Overview        string   `json:"overview"`
	Recommendations []string `json:"recommendations"`
}
