package consult

import "time"

// Message roles. History only ever contains these two.
const (
	RolePatient   = "patient"
	RoleAssistant = "assistant"
)

// Message persists individual turns for audit/debug. History is append-only
// and ordered by call sequence; entries are never mutated or removed.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
