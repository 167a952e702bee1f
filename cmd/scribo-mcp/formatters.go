package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

// formatTemplates renders the template listing as a markdown table
func formatTemplates(summaries []pkgmodels.TemplateSummary) string {
	if len(summaries) == 0 {
		return "No templates registered."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Templates (%d)\n\n", len(summaries)))
	sb.WriteString("| ID | Name | Category | Time scope | Version |\n")
	sb.WriteString("|----|------|----------|------------|--------|\n")
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			s.ID, s.Name, s.Category, s.TimeScope, s.Version))
	}
	return sb.String()
}

// formatGeneration renders generator output with provenance details
func formatGeneration(output *models.GenerateOutput) string {
	var sb strings.Builder

	sb.WriteString(output.Markdown)
	sb.WriteString("\n\n---\n")

	if output.Model.Fallback {
		sb.WriteString("Drafted by: deterministic expansion (model fallback)\n")
	} else if output.Model.Model != "" {
		sb.WriteString(fmt.Sprintf("Drafted by: %s/%s\n", output.Model.Provider, output.Model.Model))
	}
	sb.WriteString(fmt.Sprintf("Tracked variables: %d\n", output.Tracked))
	if len(output.SourceErrors) > 0 {
		sb.WriteString(fmt.Sprintf("Source errors: %s\n", strings.Join(output.SourceErrors, ", ")))
	}
	return sb.String()
}

// formatReport renders a pipeline report with per-stage scores and issues
func formatReport(report *models.PipelineReport) string {
	var sb strings.Builder

	verdict := "VALID"
	if !report.Valid {
		verdict = "INVALID"
	}
	sb.WriteString(fmt.Sprintf("# Validation: %s (score %.2f)\n\n", verdict, report.Score))

	sb.WriteString("## Stages\n\n")
	for _, stage := range report.Stages {
		mark := "pass"
		if !stage.Valid {
			mark = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%.2f, %d issues)\n",
			stage.Stage, mark, stage.Score, len(stage.Issues)))
	}

	if len(report.Issues) > 0 {
		sb.WriteString("\n## Issues\n\n")
		for _, issue := range report.Issues {
			sb.WriteString(fmt.Sprintf("- [%s] %s: %s", issue.Severity, issue.Code, issue.Message))
			if issue.Suggestion != "" {
				sb.WriteString(fmt.Sprintf(" (suggestion: %s)", issue.Suggestion))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// formatVariables lists every derived variable of a fetch result
func formatVariables(source string, result *models.DataSourceResult) string {
	if len(result.Variables) == 0 {
		return fmt.Sprintf("Source %s returned no derived variables.", source)
	}

	names := make([]string, 0, len(result.Variables))
	for name := range result.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%d variables)\n\n", source, len(names)))
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("- %s = %v\n", name, result.Variables[name]))
	}
	return sb.String()
}

// formatNexus renders the nexus breakdown with one verification URL per figure
func formatNexus(baseURL string, breakdown pkgmodels.NexusBreakdown) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Nexus for %s\n\n", breakdown.ProjectID))
	sb.WriteString(fmt.Sprintf("nexus = %.4f (capped at 1.0)\n\n", breakdown.Nexus))

	components := []struct {
		field string
		label string
		value float64
	}{
		{"a", "A (own B+R activity)", breakdown.Components.A},
		{"b", "B (unrelated-party B+R services)", breakdown.Components.B},
		{"c", "C (related-party B+R services)", breakdown.Components.C},
		{"d", "D (acquired IP)", breakdown.Components.D},
	}
	for _, c := range components {
		sb.WriteString(fmt.Sprintf("- %s = %s PLN\n  %s\n",
			c.label, common.FormatAmount(c.value),
			common.ProjectVariableURL(baseURL, breakdown.ProjectID, "nexus_calculation", c.field)))
	}
	sb.WriteString(fmt.Sprintf("\nVerify the ratio: %s\n",
		common.ProjectVariableURL(baseURL, breakdown.ProjectID, "nexus_calculation", "nexus")))
	return sb.String()
}

// formatArtifacts lists a project's stored documents
func formatArtifacts(projectID string, records []pkgmodels.DocumentRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No stored artifacts for project %s.", projectID)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Artifacts for %s (%d)\n\n", projectID, len(records)))
	sb.WriteString("| Path | Latest | Date | Revisions |\n")
	sb.WriteString("|------|--------|------|-----------|\n")
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n",
			rec.Path, rec.Latest.Version, rec.Latest.Date.Format("2006-01-02 15:04"), rec.Revisions))
	}
	return sb.String()
}

// formatHistory lists revisions of one artifact, newest first
func formatHistory(projectID, file string, revisions []pkgmodels.VersionInfo) string {
	if len(revisions) == 0 {
		return fmt.Sprintf("No revisions for %s/%s.", projectID, file)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# History of %s/%s (%d revisions)\n\n", projectID, file, len(revisions)))
	for _, rev := range revisions {
		sb.WriteString(fmt.Sprintf("- %s (%s) %s", rev.Version, rev.Date.Format("2006-01-02 15:04:05"), rev.Message))
		sb.WriteString("\n")
	}
	return sb.String()
}
