package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createListTemplatesTool returns the list_templates tool definition
func createListTemplatesTool() mcp.Tool {
	return mcp.NewTool("list_templates",
		mcp.WithDescription("List available B+R/IP Box document templates with category and time scope"),
	)
}

// createGetDemoTool returns the get_demo tool definition
func createGetDemoTool() mcp.Tool {
	return mcp.NewTool("get_demo",
		mcp.WithDescription("Render a template's demo document with illustrative data (no live sources)"),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Template ID (e.g. project_card, nexus_calculation)"),
		),
	)
}

// createGenerateDocumentTool returns the generate_document tool definition
func createGenerateDocumentTool() mcp.Tool {
	return mcp.NewTool("generate_document",
		mcp.WithDescription("Generate a Markdown document from a template using live data sources. Falls back to deterministic expansion when no model endpoint responds"),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Template ID (e.g. project_card, timesheet_monthly)"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project identifier passed to data source fetches"),
		),
		mcp.WithString("project_name",
			mcp.Description("Project name for identity fields"),
		),
		mcp.WithNumber("fiscal_year",
			mcp.Description("Fiscal year (e.g. 2025)"),
		),
		mcp.WithBoolean("use_model",
			mcp.Description("Route drafting through the model fallback chain (default: false)"),
		),
		mcp.WithBoolean("use_demo_data",
			mcp.Description("Render the demo body instead of fetching live sources (default: false)"),
		),
	)
}

// createValidateDocumentTool returns the validate_document tool definition
func createValidateDocumentTool() mcp.Tool {
	return mcp.NewTool("validate_document",
		mcp.WithDescription("Run the multi-stage validation pipeline (structure, legal, financial, final) on a Markdown document"),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Markdown document content to validate"),
		),
		mcp.WithString("document_type",
			mcp.Description("Document type: project_card, timesheet_monthly, expense_registry, expense_single, nexus_calculation, br_annual_summary, ip_box_procedure, tax_interpretation_request, br_contract, generic (default)"),
		),
	)
}

// createGetProjectVariableTool returns the get_project_variable tool definition
func createGetProjectVariableTool() mcp.Tool {
	return mcp.NewTool("get_project_variable",
		mcp.WithDescription("Fetch a data source for a project and resolve a named variable or row field"),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Registered data source name (e.g. nexus_calculation, timesheet_hours)"),
		),
		mcp.WithString("field",
			mcp.Description("Variable name or row field; omit to list all derived variables"),
		),
	)
}

// createGetNexusTool returns the get_nexus tool definition
func createGetNexusTool() mcp.Tool {
	return mcp.NewTool("get_nexus",
		mcp.WithDescription("Compute the IP Box nexus indicator for a project: four cost components, the capped ratio and a verification URL per figure"),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier"),
		),
	)
}

// createListHistoryTool returns the list_history tool definition
func createListHistoryTool() mcp.Tool {
	return mcp.NewTool("list_history",
		mcp.WithDescription("List a project's stored document artifacts, or the revision history of one file"),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project identifier (artifact directory)"),
		),
		mcp.WithString("file",
			mcp.Description("Artifact filename; omit to list all artifacts"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max revisions to return (default: 10)"),
		),
	)
}
