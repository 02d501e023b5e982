package consult

import "time"

// Session captures a single anonymous consultation. Age fields are optional
// defaults supplied at intake; a turn may override them.
type Session struct {
	ID          string    `json:"id"`
	Age         int       `json:"age,omitempty"`
	AgeCategory string    `json:"ageCategory,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
