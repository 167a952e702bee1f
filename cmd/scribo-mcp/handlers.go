package main

import (
	"context"
	"fmt"
	"path"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	pkgmodels "github.com/ternarybob/scribo/pkg/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleListTemplates implements the list_templates tool
func handleListTemplates(templateService interfaces.TemplateService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		summaries := templateService.List()
		return textResult(formatTemplates(summaries)), nil
	}
}

// handleGetDemo implements the get_demo tool
func handleGetDemo(templateService interfaces.TemplateService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		templateID, err := request.RequireString("template_id")
		if err != nil || templateID == "" {
			return textResult("Error: template_id parameter is required"), nil
		}

		demo, err := templateService.Demo(templateID)
		if err != nil {
			logger.Error().Err(err).Str("template_id", templateID).Msg("Demo render failed")
			return textResult(fmt.Sprintf("Demo error: %v", err)), nil
		}

		return textResult(demo), nil
	}
}

// handleGenerateDocument implements the generate_document tool
func handleGenerateDocument(generatorService interfaces.GeneratorService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		templateID, err := request.RequireString("template_id")
		if err != nil || templateID == "" {
			return textResult("Error: template_id parameter is required"), nil
		}

		projectID := request.GetString("project_id", "")
		projectName := request.GetString("project_name", "")
		fiscalYear := request.GetInt("fiscal_year", 0)

		req := &models.GenerateRequest{
			TemplateID:  templateID,
			Params:      map[string]interface{}{},
			UseModel:    request.GetBool("use_model", false),
			UseDemoData: request.GetBool("use_demo_data", false),
		}
		if projectID != "" {
			req.Params["project_id"] = projectID
		}
		if fiscalYear > 0 {
			req.Params["fiscal_year"] = fiscalYear
		}
		if projectID != "" || projectName != "" {
			req.Project = &pkgmodels.ProjectInput{
				ProjectID:  projectID,
				Name:       projectName,
				FiscalYear: fiscalYear,
			}
		}

		output, err := generatorService.Generate(ctx, req)
		if err != nil {
			logger.Error().Err(err).Str("template_id", templateID).Msg("Generation failed")
			return textResult(fmt.Sprintf("Generation error: %v", err)), nil
		}

		return textResult(formatGeneration(output)), nil
	}
}

// handleValidateDocument implements the validate_document tool
func handleValidateDocument(validator interfaces.ValidationService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := request.RequireString("content")
		if err != nil || content == "" {
			return textResult("Error: content parameter is required"), nil
		}

		docType := models.DocumentType(request.GetString("document_type", string(models.DocTypeGeneric)))
		vctx := models.NewValidationContext(content, docType)

		report, err := validator.Validate(ctx, vctx, models.ValidationOptions{})
		if err != nil {
			logger.Error().Err(err).Msg("Validation failed")
			return textResult(fmt.Sprintf("Validation error: %v", err)), nil
		}

		return textResult(formatReport(report)), nil
	}
}

// handleGetProjectVariable implements the get_project_variable tool
func handleGetProjectVariable(sourceService interfaces.DataSourceService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := request.RequireString("project_id")
		if err != nil || projectID == "" {
			return textResult("Error: project_id parameter is required"), nil
		}
		source, err := request.RequireString("source")
		if err != nil || source == "" {
			return textResult("Error: source parameter is required"), nil
		}

		result := sourceService.Fetch(ctx, source, map[string]interface{}{
			"project_id": projectID,
		})
		if !result.OK() {
			return textResult(fmt.Sprintf("Fetch error: %s", result.Error)), nil
		}

		field := request.GetString("field", "")
		if field == "" {
			return textResult(formatVariables(source, result)), nil
		}

		if value, ok := result.Variable(field); ok {
			return textResult(fmt.Sprintf("%s.%s = %v", source, field, value)), nil
		}
		if row := result.FirstRow(); row != nil {
			if value, ok := row[field]; ok {
				return textResult(fmt.Sprintf("%s.%s = %v", source, field, value)), nil
			}
		}

		// Unknown field resolves to null, same as the HTTP variable API
		return textResult(fmt.Sprintf("%s.%s = null (not present in result)", source, field)), nil
	}
}

// handleGetNexus implements the get_nexus tool
func handleGetNexus(sourceService interfaces.DataSourceService, baseURL string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := request.RequireString("project_id")
		if err != nil || projectID == "" {
			return textResult("Error: project_id parameter is required"), nil
		}

		result := sourceService.Fetch(ctx, "nexus_calculation", map[string]interface{}{
			"project_id": projectID,
		})
		if !result.OK() {
			return textResult(fmt.Sprintf("Fetch error: %s", result.Error)), nil
		}

		row := result.FirstRow()
		components := pkgmodels.NexusComponents{
			A: asFloat(row["a"]),
			B: asFloat(row["b"]),
			C: asFloat(row["c"]),
			D: asFloat(row["d"]),
		}
		breakdown := pkgmodels.NewNexusBreakdown(projectID, 0, components)

		return textResult(formatNexus(baseURL, breakdown)), nil
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// handleListHistory implements the list_history tool
func handleListHistory(versionService interfaces.VersionService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := request.RequireString("project_id")
		if err != nil || projectID == "" {
			return textResult("Error: project_id parameter is required"), nil
		}

		file := request.GetString("file", "")
		if file == "" {
			records, err := versionService.ListArtifacts(projectID)
			if err != nil {
				logger.Error().Err(err).Str("project_id", projectID).Msg("Artifact listing failed")
				return textResult(fmt.Sprintf("List error: %v", err)), nil
			}
			return textResult(formatArtifacts(projectID, records)), nil
		}

		limit := request.GetInt("limit", 10)
		revisions, err := versionService.History(path.Join(projectID, file), limit)
		if err != nil {
			logger.Error().Err(err).Str("file", file).Msg("History lookup failed")
			return textResult(fmt.Sprintf("History error: %v", err)), nil
		}

		return textResult(formatHistory(projectID, file, revisions)), nil
	}
}
