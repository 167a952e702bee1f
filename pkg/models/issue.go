package models

import "time"

// Severity ranks validation findings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Stable issue codes emitted by the validation pipeline.
const (
	// Structure stage
	CodeDocTooShort        = "DOC_TOO_SHORT"
	CodeMissingTitle       = "MISSING_TITLE"
	CodeMissingSection     = "MISSING_SECTION"
	CodeMissingField       = "MISSING_FIELD"
	CodeInvalidTableFormat = "INVALID_TABLE_FORMAT"
	CodeEmptySections      = "EMPTY_SECTIONS"

	// Legal stage
	CodeInvalidNIP             = "INVALID_NIP"
	CodeMissingBRCategory      = "MISSING_BR_CATEGORY"
	CodeMissingLegalReference  = "MISSING_LEGAL_REFERENCE"
	CodeMissingQualification   = "MISSING_QUALIFICATION_JUSTIFICATION"
	CodeInconsistentDates      = "INCONSISTENT_DATES"
	CodeRelatedPartyDisclosure = "RELATED_PARTY_DISCLOSURE"

	// Financial stage
	CodeNegativeAmount    = "NEGATIVE_AMOUNT"
	CodeSuspiciousAmount  = "SUSPICIOUS_AMOUNT"
	CodeNexusNegative     = "NEXUS_NEGATIVE"
	CodeNexusExceedsOne   = "NEXUS_EXCEEDS_ONE"
	CodeNexusMismatch     = "NEXUS_MISMATCH"
	CodeTotalMismatch     = "TOTAL_MISMATCH"
	CodeInvalidPercentage = "INVALID_PERCENTAGE"
	CodeMixedCurrencies   = "MIXED_CURRENCIES"
)

// ValidationIssue is a single finding reported by a validation stage.
type ValidationIssue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"` // UPPER_SNAKE_CASE, stable across releases
	Message    string   `json:"message"`
	Location   string   `json:"location,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ValidationResult is the outcome of one validation stage.
type ValidationResult struct {
	Valid       bool              `json:"valid"` // true iff no error-severity issues
	Issues      []ValidationIssue `json:"issues"`
	Score       float64           `json:"score"` // 0-1 after deductions
	Stage       string            `json:"stage"`
	ValidatedAt time.Time         `json:"validated_at"`
}

// ErrorCount returns the number of error-severity issues.
func (r ValidationResult) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-severity issues.
func (r ValidationResult) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			count++
		}
	}
	return count
}
