package generator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// numberPattern matches monetary and numeric literals, including Polish
// grouped notation like 120 000,00.
var numberPattern = regexp.MustCompile(`\d+(?:[ \x{00a0}]\d{3})*(?:[.,]\d+)?`)

// Refine runs the correction loop: each iteration presents the open issues
// to the chain and accepts the rewrite only when it keeps every numeric
// literal of the previous revision. The returned content is always usable;
// a rejected or failed iteration keeps the prior revision.
func (s *Service) Refine(ctx context.Context, content string, issues []pkgmodels.ValidationIssue, maxIterations int) (string, []models.RefinementEntry) {
	var entries []models.RefinementEntry
	if len(issues) == 0 || maxIterations <= 0 {
		return content, entries
	}
	if s.chain == nil || !s.chain.Available() {
		entries = append(entries, models.RefinementEntry{
			Iteration: 1,
			Status:    pkgmodels.RefineSkipped,
			Reason:    "no model endpoint available",
			Issues:    len(issues),
		})
		return content, entries
	}

	for i := 1; i <= maxIterations; i++ {
		start := time.Now()
		resp := s.chain.Complete(ctx, &models.ModelRequest{
			Prompt:      refinePrompt(content, issues),
			Temperature: s.config.Generation.Temperature,
			MaxTokens:   s.config.Generation.SummaryMaxTokens,
			Purpose:     "refine",
		})
		entry := models.RefinementEntry{
			Iteration: i,
			Issues:    len(issues),
			Provider:  resp.Provider,
			Model:     resp.Model,
			Duration:  time.Since(start),
		}

		if !resp.OK() {
			entry.Status = pkgmodels.RefineError
			entry.Reason = resp.Error
			entries = append(entries, entry)
			return content, entries
		}

		revised := strings.TrimSpace(resp.Content)
		switch {
		case revised == "" || !headingPattern.MatchString(revised):
			entry.Status = pkgmodels.RefineFailed
			entry.Reason = "revision lost document structure"
		case !keepsNumbers(content, revised):
			entry.Status = pkgmodels.RefineFailed
			entry.Reason = "revision dropped numeric values"
		default:
			entry.Status = pkgmodels.RefineSuccess
			content = revised
		}
		entries = append(entries, entry)

		if entry.Status == pkgmodels.RefineSuccess {
			return content, entries
		}
	}
	return content, entries
}

// keepsNumbers verifies every numeric literal of the original still appears
// in the revision. Corrections may add numbers but never remove them.
func keepsNumbers(original, revised string) bool {
	have := make(map[string]int)
	for _, n := range numberPattern.FindAllString(revised, -1) {
		have[normalizeNumber(n)]++
	}
	for _, n := range numberPattern.FindAllString(original, -1) {
		key := normalizeNumber(n)
		if have[key] == 0 {
			return false
		}
		have[key]--
	}
	return true
}

// normalizeNumber strips grouping spaces so "120 000,00" and "120000,00"
// compare equal.
func normalizeNumber(n string) string {
	n = strings.ReplaceAll(n, " ", "")
	return strings.ReplaceAll(n, "\u00a0", "")
}
