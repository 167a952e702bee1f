package models

import "time"

// NexusComponents holds the four cost components of the IP Box Nexus formula
type NexusComponents struct {
	// A is the cost of B+R activity conducted directly by the taxpayer
	A float64 `json:"a"`
	// B is the cost of B+R services acquired from unrelated parties
	B float64 `json:"b"`
	// C is the cost of B+R services acquired from related parties
	C float64 `json:"c"`
	// D is the cost of acquired qualified intellectual property
	D float64 `json:"d"`
}

// Calculate returns the Nexus indicator: min(1, ((a+b) * 1.3) / (a+b+c+d)).
// An empty denominator means no costs were incurred and yields 1.0.
func (n NexusComponents) Calculate() float64 {
	denominator := n.A + n.B + n.C + n.D
	if denominator == 0 {
		return 1.0
	}
	nexus := ((n.A + n.B) * 1.3) / denominator
	if nexus > 1.0 {
		return 1.0
	}
	return nexus
}

// NexusBreakdown is the full Nexus calculation exposed by the API and
// embedded in generated documents.
type NexusBreakdown struct {
	ProjectID    string          `json:"project_id"`
	FiscalYear   int             `json:"fiscal_year,omitempty"`
	Components   NexusComponents `json:"components"`
	Nexus        float64         `json:"nexus"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// NewNexusBreakdown computes the indicator for a project's components.
func NewNexusBreakdown(projectID string, fiscalYear int, components NexusComponents) NexusBreakdown {
	return NexusBreakdown{
		ProjectID:    projectID,
		FiscalYear:   fiscalYear,
		Components:   components,
		Nexus:        components.Calculate(),
		CalculatedAt: time.Now(),
	}
}
