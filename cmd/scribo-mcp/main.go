package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/services/generator"
	"github.com/ternarybob/scribo/internal/services/llm"
	"github.com/ternarybob/scribo/internal/services/sources"
	"github.com/ternarybob/scribo/internal/services/templates"
	"github.com/ternarybob/scribo/internal/services/validation"
	"github.com/ternarybob/scribo/internal/services/versions"
	"github.com/ternarybob/scribo/internal/storage"
	"github.com/ternarybob/scribo/internal/storage/postgres"
)

func main() {
	// Load configuration
	configPath := os.Getenv("SCRIBO_CONFIG")
	if configPath == "" {
		configPath = "scribo.toml"
	}

	config, err := common.LoadFromFiles(nil, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console-only logger at warn level; stdio carries the MCP protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Badger backs the model chain's key lookup and audit trail
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Invoice read model is optional; REST and curl sources work without it
	var pool = optionalPool(config, logger)
	if pool != nil {
		defer pool.Close()
	}

	sourceService := sources.NewService(logger, pool)

	templateService, err := templates.NewService(logger, config.Templates.OverrideDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize template service")
	}

	modelChain := llm.NewService(config, storageManager.KVStorage(), storageManager.AuditStorage(), logger)
	generatorService := generator.NewService(config, templateService, sourceService, modelChain, logger)
	validator := validation.NewService(modelChain, logger)

	versionService, err := versions.NewService(versions.Config{
		BaseDir: config.Storage.DataRoot,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize version store")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"scribo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Template and generation tools
	mcpServer.AddTool(createListTemplatesTool(), handleListTemplates(templateService, logger))
	mcpServer.AddTool(createGetDemoTool(), handleGetDemo(templateService, logger))
	mcpServer.AddTool(createGenerateDocumentTool(), handleGenerateDocument(generatorService, logger))

	// Validation tool
	mcpServer.AddTool(createValidateDocumentTool(), handleValidateDocument(validator, logger))

	// Variable and history tools
	mcpServer.AddTool(createGetProjectVariableTool(), handleGetProjectVariable(sourceService, logger))
	mcpServer.AddTool(createGetNexusTool(), handleGetNexus(sourceService, config.VerificationBaseURL(), logger))
	mcpServer.AddTool(createListHistoryTool(), handleListHistory(versionService, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// optionalPool connects the invoice read model when a DSN is configured.
// Failures are non-fatal: the tools that need SQL report per-call errors.
func optionalPool(config *common.Config, logger arbor.ILogger) *pgxpool.Pool {
	if config.Database.DSN == "" {
		return nil
	}

	timeout := 5 * time.Second
	if d, err := time.ParseDuration(config.Database.ConnectTimeout); err == nil && config.Database.ConnectTimeout != "" {
		timeout = d
	}

	pool, err := postgres.NewPool(context.Background(), logger, &config.Database, timeout)
	if err != nil {
		logger.Warn().Err(err).Msg("Invoice read model unavailable")
		return nil
	}
	return pool
}
