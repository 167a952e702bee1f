package models

// TemplateCategory groups document templates by purpose
type TemplateCategory string

const (
	TemplateCategoryProject   TemplateCategory = "project"
	TemplateCategoryFinancial TemplateCategory = "financial"
	TemplateCategoryTimesheet TemplateCategory = "timesheet"
	TemplateCategoryLegal     TemplateCategory = "legal"
	TemplateCategoryTax       TemplateCategory = "tax"
	TemplateCategoryReport    TemplateCategory = "report"
)

// TimeScope declares what period a template's document covers
type TimeScope string

const (
	ScopeNone      TimeScope = "none"
	ScopeMonthly   TimeScope = "monthly"
	ScopeQuarterly TimeScope = "quarterly"
	ScopeYearly    TimeScope = "yearly"
	ScopeProject   TimeScope = "project"
	ScopeCustom    TimeScope = "custom"
)

// DataRequirement names a data source a template needs before rendering.
type DataRequirement struct {
	Source         string   `json:"source"`
	RequiredParams []string `json:"required_params,omitempty"`
	OptionalParams []string `json:"optional_params,omitempty"`
}

// Template is a registered document template.
type Template struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Category     TemplateCategory  `json:"category"`
	TimeScope    TimeScope         `json:"time_scope"`
	Requirements []DataRequirement `json:"data_requirements,omitempty"`
	Body         string            `json:"body"`
	DemoBody     string            `json:"demo_body,omitempty"`
	ModelPrompt  string            `json:"model_prompt,omitempty"`
	OutputFormat string            `json:"output_format"` // "markdown" unless stated otherwise
	Version      string            `json:"version"`
	// StrictVars makes undefined variables a render error instead of an
	// empty string
	StrictVars bool `json:"strict_vars,omitempty"`
}

// TemplateSummary is the listing shape returned by the templates API.
type TemplateSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    TemplateCategory `json:"category"`
	TimeScope   TimeScope        `json:"time_scope"`
	Version     string           `json:"version"`
}

// Summary returns the listing shape for the template.
func (t Template) Summary() TemplateSummary {
	return TemplateSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		TimeScope:   t.TimeScope,
		Version:     t.Version,
	}
}
