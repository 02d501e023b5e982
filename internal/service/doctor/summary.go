package doctor

import (
	"context"
	"log"
	"strings"

	"github.com/docvisit/backend/internal/model/consult"
)

// Summarize produces the end-of-visit report: a narrative overview and an
// ordered recommendation list, generated by two independent calls over the
// same transcript. Both halves degrade to canned content on failure; only
// an unknown session errors.
func (s *Service) Summarize(ctx context.Context, sessionID string) (consult.ConsultationSummary, error) {
	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return consult.ConsultationSummary{}, err
	}

	transcriptText := formatTranscript(transcript)

	summary := consult.ConsultationSummary{
		Overview:        fallbackText[failureOverview],
		Recommendations: append([]string(nil), fallbackRecommendations...),
	}

	// The two calls are independent but issued back-to-back; a hung model
	// call is bounded only by the caller's context.
	if msg, genErr := s.chain.Invoke(ctx, map[string]any{
		"system": overviewInstruction,
		"query":  transcriptText,
	}); genErr != nil {
		log.Printf("[doctor] overview generation failed for session=%s: %v", sessionID, genErr)
	} else if msg != nil && strings.TrimSpace(msg.Content) != "" {
		summary.Overview = strings.TrimSpace(msg.Content)
	}

	if msg, genErr := s.chain.Invoke(ctx, map[string]any{
		"system": recommendationsInstruction,
		"query":  transcriptText,
	}); genErr != nil {
		log.Printf("[doctor] recommendation generation failed for session=%s: %v", sessionID, genErr)
	} else if msg != nil {
		if recs := parseRecommendations(msg.Content); len(recs) > 0 {
			summary.Recommendations = recs
		} else {
			log.Printf("[doctor] no usable recommendations parsed for session=%s", sessionID)
		}
	}

	return summary, nil
}

// formatTranscript renders the history as alternating "Patient:"/"Doctor:"
// lines for the summary prompts.
func formatTranscript(transcript []consult.Message) string {
	if len(transcript) == 0 {
		return "(no conversation took place)"
	}

	var builder strings.Builder
	for i, msg := range transcript {
		if i > 0 {
			builder.WriteString("\n")
		}
		if msg.Role == consult.RoleAssistant {
			builder.WriteString("Doctor: ")
		} else {
			builder.WriteString("Patient: ")
		}
		builder.WriteString(msg.Content)
	}
	return builder.String()
}

// parseRecommendations splits raw model output into clean recommendation
// lines: markdown emphasis and leading bullet or enumeration prefixes are
// stripped, and anything shorter than 4 characters is discarded.
func parseRecommendations(raw string) []string {
	lines := strings.Split(raw, "\n")
	recommendations := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "*", "")
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•· \t")
		line = trimEnumeration(line)
		line = strings.TrimSpace(line)
		if len(line) < 4 {
			continue
		}
		recommendations = append(recommendations, line)
	}
	return recommendations
}

// trimEnumeration strips a leading "1." / "2)" style prefix. A bare number
// with no separator is treated as content and kept.
func trimEnumeration(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return line[i+1:]
	}
	return line
}
