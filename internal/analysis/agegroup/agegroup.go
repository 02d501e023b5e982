package agegroup

// Coarse age buckets used to pick tone guidance for the doctor prompt.
// They mirror the categories emitted by the frontend age estimator.
const (
	Child      = "Child"
	Teenager   = "Teenager"
	Adult      = "Adult"
	MiddleAged = "Middle-aged"
	Senior     = "Senior"
)

// Categorize buckets a numeric age. Non-positive ages return an empty
// category, which prompt assembly treats as unknown.
func Categorize(age int) string {
	switch {
	case age <= 0:
		return ""
	case age <= 12:
		return Child
	case age <= 19:
		return Teenager
	case age <= 39:
		return Adult
	case age <= 59:
		return MiddleAged
	default:
		return Senior
	}
}
