// -----------------------------------------------------------------------
// ProjectInput - root record describing one B+R project for a documentation run
// All fields are validated using go-playground/validator tags.
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MilestoneStatus tracks the lifecycle of a project milestone
type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "planned"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneDelayed    MilestoneStatus = "delayed"
)

// NamePL returns the Polish display form used in generated documents.
func (s MilestoneStatus) NamePL() string {
	switch s {
	case MilestonePlanned:
		return "planowany"
	case MilestoneInProgress:
		return "w trakcie"
	case MilestoneCompleted:
		return "zakończony"
	case MilestoneDelayed:
		return "opóźniony"
	}
	return string(s)
}

// InnovationType classifies what kind of innovation the project pursues
type InnovationType string

const (
	InnovationProduct        InnovationType = "product"
	InnovationProcess        InnovationType = "process"
	InnovationService        InnovationType = "service"
	InnovationOrganizational InnovationType = "organizational"
)

// NamePL returns the Polish adjective form used in generated documents.
func (t InnovationType) NamePL() string {
	switch t {
	case InnovationProduct:
		return "produktowa"
	case InnovationProcess:
		return "procesowa"
	case InnovationService:
		return "usługowa"
	case InnovationOrganizational:
		return "organizacyjna"
	}
	return string(t)
}

// InnovationScope classifies how far the innovation reaches
type InnovationScope string

const (
	ScopeCompany  InnovationScope = "company"
	ScopeNational InnovationScope = "national"
	ScopeGlobal   InnovationScope = "global"
)

// NamePL returns the Polish display form used in generated documents.
func (s InnovationScope) NamePL() string {
	switch s {
	case ScopeCompany:
		return "skala przedsiębiorstwa"
	case ScopeNational:
		return "skala krajowa"
	case ScopeGlobal:
		return "skala światowa"
	}
	return string(s)
}

// ProjectInput describes one B+R project. It is immutable for the duration
// of a generation request.
type ProjectInput struct {
	// Identity
	ProjectID    string `json:"project_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	InternalCode string `json:"internal_code,omitempty"`
	FiscalYear   int    `json:"fiscal_year" validate:"required,gte=2004"`
	CompanyName  string `json:"company_name" validate:"required"`
	CompanyNIP   string `json:"company_nip" validate:"required"`

	// Timeline
	StartDate  time.Time   `json:"start_date" validate:"required"`
	EndDate    time.Time   `json:"end_date" validate:"required"`
	Milestones []Milestone `json:"milestones,omitempty" validate:"dive"`

	// Innovation profile and methodology
	Innovation  InnovationProfile `json:"innovation" validate:"required"`
	Methodology Methodology       `json:"methodology"`

	// Qualified costs
	Costs ProjectCosts `json:"costs"`

	// Documentation settings
	Documentation DocumentationConfig `json:"documentation"`
}

// Milestone is a dated checkpoint within the project timeline.
type Milestone struct {
	Name         string          `json:"name" validate:"required"`
	TargetDate   time.Time       `json:"target_date" validate:"required"`
	ActualDate   *time.Time      `json:"actual_date,omitempty"`
	Status       MilestoneStatus `json:"status" validate:"required,oneof=planned in_progress completed delayed"`
	Deliverables string          `json:"deliverables,omitempty"`
	Findings     string          `json:"findings,omitempty"`
}

// InnovationProfile captures the innovation claim underlying the B+R qualification.
// Descriptions of at least 100 characters survive legal validation without warnings.
type InnovationProfile struct {
	Type        InnovationType  `json:"type" validate:"required,oneof=product process service organizational"`
	Scope       InnovationScope `json:"scope" validate:"required,oneof=company national global"`
	Description string          `json:"description" validate:"required"`
}

// Methodology documents the systematic character of the work.
type Methodology struct {
	Systematic      bool     `json:"systematic"`
	Creative        bool     `json:"creative"`
	Innovative      bool     `json:"innovative"`
	ResearchMethods []string `json:"research_methods,omitempty"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
}

// PersonnelCost is one person's B+R involvement over the fiscal year.
// BRShare accepts fractional (0-1) and percent (0-100) notation.
type PersonnelCost struct {
	Person       string  `json:"person" validate:"required"`
	Position     string  `json:"position,omitempty"`
	MonthlyGross float64 `json:"monthly_gross" validate:"gte=0"`
	Months       int     `json:"months" validate:"gte=0,lte=12"`
	BRShare      float64 `json:"br_share" validate:"gte=0,lte=100"`
}

// Total returns the qualified gross for the entry: monthly gross x months x B+R share.
func (c PersonnelCost) Total() float64 {
	return c.MonthlyGross * float64(c.Months) * normalizeShare(c.BRShare)
}

// CostEntry is a non-personnel qualified cost item.
type CostEntry struct {
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Vendor      string  `json:"vendor,omitempty"`
	InvoiceRef  string  `json:"invoice_ref,omitempty"`
}

// ProjectCosts groups qualified costs by statutory category.
type ProjectCosts struct {
	PersonnelEmployment []PersonnelCost `json:"personnel_employment,omitempty" validate:"dive"`
	PersonnelCivil      []PersonnelCost `json:"personnel_civil,omitempty" validate:"dive"`
	Materials           []CostEntry     `json:"materials,omitempty" validate:"dive"`
	Equipment           []CostEntry     `json:"equipment,omitempty" validate:"dive"`
	Depreciation        []CostEntry     `json:"depreciation,omitempty" validate:"dive"`
	Expertise           []CostEntry     `json:"expertise,omitempty" validate:"dive"`
	ExternalServices    []CostEntry     `json:"external_services,omitempty" validate:"dive"`

	// DeclaredTotal is the aggregate the project declares; when non-zero it
	// must equal the computed total within 0.01 PLN
	DeclaredTotal float64 `json:"declared_total,omitempty"`
}

// TotalByCategory sums qualified gross per category tag.
func (pc ProjectCosts) TotalByCategory() map[CostCategory]float64 {
	totals := make(map[CostCategory]float64)

	add := func(category CostCategory, amount float64) {
		if amount != 0 {
			totals[category] += amount
		}
	}

	for _, c := range pc.PersonnelEmployment {
		add(CategoryPersonnelEmployment, c.Total())
	}
	for _, c := range pc.PersonnelCivil {
		add(CategoryPersonnelCivil, c.Total())
	}
	for _, e := range pc.Materials {
		add(CategoryMaterials, e.Amount)
	}
	for _, e := range pc.Equipment {
		add(CategoryEquipment, e.Amount)
	}
	for _, e := range pc.Depreciation {
		add(CategoryDepreciation, e.Amount)
	}
	for _, e := range pc.Expertise {
		add(CategoryExpertise, e.Amount)
	}
	for _, e := range pc.ExternalServices {
		add(CategoryExternalServices, e.Amount)
	}

	return totals
}

// Total returns the qualified gross across all categories.
func (pc ProjectCosts) Total() float64 {
	total := 0.0
	for _, amount := range pc.TotalByCategory() {
		total += amount
	}
	return total
}

// TotalDeduction returns the deductible amount: per-category gross x statutory rate.
func (pc ProjectCosts) TotalDeduction() float64 {
	total := 0.0
	for category, amount := range pc.TotalByCategory() {
		total += amount * category.DeductionRate()
	}
	return total
}

// NexusComponents maps the project's own cost structure onto the Nexus formula.
func (pc ProjectCosts) NexusComponents() NexusComponents {
	var n NexusComponents
	for category, amount := range pc.TotalByCategory() {
		switch category.NexusComponent() {
		case "a":
			n.A += amount
		case "b":
			n.B += amount
		case "c":
			n.C += amount
		case "d":
			n.D += amount
		}
	}
	return n
}

// DocumentationConfig carries per-project documentation settings.
type DocumentationConfig struct {
	Templates        []string `json:"templates,omitempty"` // template ids to produce; empty means caller picks
	IncludeNexus     bool     `json:"include_nexus"`
	IncludeTimesheet bool     `json:"include_timesheet"`
	AllowFutureYear  bool     `json:"allow_future_year"` // permit fiscal years beyond next year
	Language         string   `json:"language,omitempty"`
}

// Validate validates the record using go-playground/validator.
// NIP checksum and timeline ordering are checked separately by the
// generation pipeline since validator tags cannot express them.
func (p *ProjectInput) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// normalizeShare converts percent notation (values above 1) to a fraction.
func normalizeShare(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// NewProjectInput creates a project record with default values.
func NewProjectInput(projectID, name string, fiscalYear int) *ProjectInput {
	return &ProjectInput{
		ProjectID:  projectID,
		Name:       name,
		FiscalYear: fiscalYear,
		Documentation: DocumentationConfig{
			Language: "pl",
		},
	}
}
