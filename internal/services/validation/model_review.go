package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

const (
	reviewMaxContentChars = 12000
	reviewMaxPriorIssues  = 20
	reviewMaxTokens       = 1200
	reviewTemperature     = 0.1
)

const reviewSystemPrompt = `Jesteś audytorem dokumentacji podatkowej ulgi B+R oraz IP Box.
Oceniasz merytoryczną spójność dokumentu: zgodność opisów z kwotami, kompletność
uzasadnień i wiarygodność zestawień. Nie oceniasz formatowania Markdown.
Odpowiadasz wyłącznie jednym obiektem JSON, bez komentarzy przed ani po nim.`

// ModelReviewValidator asks a model to audit the document and folds its
// verdict into the pipeline. The stage is best effort: when no model is
// configured, the call fails or the verdict cannot be parsed, it reports
// itself as skipped instead of failing the document.
type ModelReviewValidator struct {
	chain  interfaces.ModelService
	logger arbor.ILogger
}

var _ interfaces.Validator = (*ModelReviewValidator)(nil)

func NewModelReviewValidator(chain interfaces.ModelService, logger arbor.ILogger) *ModelReviewValidator {
	return &ModelReviewValidator{chain: chain, logger: logger}
}

func (v *ModelReviewValidator) Name() string {
	return StageModelReview
}

type reviewIssue struct {
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Location   string `json:"location"`
	Suggestion string `json:"suggestion"`
}

type reviewVerdict struct {
	Score  *float64      `json:"score"`
	Issues []reviewIssue `json:"issues"`
}

func (v *ModelReviewValidator) Validate(ctx context.Context, vctx *models.ValidationContext) (*pkgmodels.ValidationResult, error) {
	if v.chain == nil || !v.chain.Available() {
		return nil, nil
	}

	resp := v.chain.Complete(ctx, v.buildRequest(vctx))
	if !resp.OK() {
		v.logger.Warn().Str("error", resp.Error).Msg("Model review unavailable, stage skipped")
		return nil, nil
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		v.logger.Warn().Err(err).Str("model", resp.Model).Msg("Model review verdict unreadable, stage skipped")
		return nil, nil
	}

	issues := make([]pkgmodels.ValidationIssue, 0, len(verdict.Issues))
	for _, ri := range verdict.Issues {
		message := strings.TrimSpace(ri.Message)
		if message == "" {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(ri.Code))
		if code == "" {
			code = "MODEL_REVIEW"
		}
		issue := pkgmodels.ValidationIssue{
			Severity:   reviewSeverity(ri.Severity),
			Code:       code,
			Message:    message,
			Location:   strings.TrimSpace(ri.Location),
			Suggestion: strings.TrimSpace(ri.Suggestion),
		}
		issues = append(issues, issue)
	}

	vctx.AddIssues(issues...)
	result := stageResult(StageModelReview, issues, structureErrWeight, structureWarnWeight)
	if verdict.Score != nil {
		score := *verdict.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		// The repair path re-emits numbers at float32 precision; four
		// decimals is all the 0.0-1.0 verdict scale carries anyway.
		result.Score = math.Round(score*10000) / 10000
	}
	return result, nil
}

func (v *ModelReviewValidator) buildRequest(vctx *models.ValidationContext) *models.ModelRequest {
	var sb strings.Builder
	sb.WriteString("Oceń poniższy dokument (typ: ")
	sb.WriteString(string(vctx.DocumentType))
	sb.WriteString(") i odpowiedz obiektem JSON o kształcie:\n")
	sb.WriteString(`{"score": 0.0-1.0, "issues": [{"severity": "error|warning|info", "code": "KOD", "message": "...", "location": "...", "suggestion": "..."}]}`)
	sb.WriteString("\nZgłaszaj severity \"error\" tylko dla wad dyskwalifikujących dokument.\n")

	if len(vctx.Issues) > 0 {
		sb.WriteString("\nZastrzeżenia z wcześniejszych etapów weryfikacji:\n")
		for i, issue := range vctx.Issues {
			if i >= reviewMaxPriorIssues {
				fmt.Fprintf(&sb, "- oraz %d dalszych\n", len(vctx.Issues)-reviewMaxPriorIssues)
				break
			}
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", strings.ToUpper(string(issue.Severity)), issue.Code, issue.Message)
		}
	}

	sb.WriteString("\nDokument:\n\n")
	sb.WriteString(truncateRunes(vctx.Content, reviewMaxContentChars))

	return &models.ModelRequest{
		Prompt:       sb.String(),
		SystemPrompt: reviewSystemPrompt,
		Temperature:  reviewTemperature,
		MaxTokens:    reviewMaxTokens,
		Purpose:      "model_review",
	}
}

// parseVerdict reads the model's JSON verdict, repairing malformed output
// (markdown fences, trailing commas) before giving up.
func parseVerdict(content string) (*reviewVerdict, error) {
	var verdict reviewVerdict
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		repaired, rerr := jsonrepair.RepairJSON(content)
		if rerr != nil {
			return nil, fmt.Errorf("verdict is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
			return nil, fmt.Errorf("repaired verdict is not JSON: %w", err)
		}
	}
	if verdict.Score == nil && len(verdict.Issues) == 0 {
		return nil, fmt.Errorf("verdict carries neither score nor issues")
	}
	return &verdict, nil
}

func reviewSeverity(s string) pkgmodels.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return pkgmodels.SeverityError
	case "info":
		return pkgmodels.SeverityInfo
	default:
		return pkgmodels.SeverityWarning
	}
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n[... dokument skrócony ...]"
}
