package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/handlers"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/auth"
	"github.com/ternarybob/scribo/internal/services/events"
	"github.com/ternarybob/scribo/internal/services/evidence"
	"github.com/ternarybob/scribo/internal/services/generator"
	"github.com/ternarybob/scribo/internal/services/llm"
	"github.com/ternarybob/scribo/internal/services/mailer"
	"github.com/ternarybob/scribo/internal/services/orchestrator"
	"github.com/ternarybob/scribo/internal/services/render"
	"github.com/ternarybob/scribo/internal/services/scheduler"
	"github.com/ternarybob/scribo/internal/services/sources"
	"github.com/ternarybob/scribo/internal/services/status"
	"github.com/ternarybob/scribo/internal/services/templates"
	"github.com/ternarybob/scribo/internal/services/validation"
	"github.com/ternarybob/scribo/internal/services/versions"
	"github.com/ternarybob/scribo/internal/storage"
	"github.com/ternarybob/scribo/internal/storage/postgres"
)

// variableLoader is the startup-time file loading surface of the storage
// manager (keys directory and .env seeding).
type variableLoader interface {
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error
	LoadEnvFile(ctx context.Context, filePath string) error
}

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Invoice read model (optional; nil when no DSN is configured)
	Pool           *pgxpool.Pool
	InvoiceStorage interfaces.InvoiceStorage

	// Core services
	EventService     interfaces.EventService
	SourceService    interfaces.DataSourceService
	TemplateService  interfaces.TemplateService
	ModelService     interfaces.ModelService
	GeneratorService interfaces.GeneratorService
	Validator        interfaces.ValidationService
	RenderService    interfaces.RenderService
	VersionService   interfaces.VersionService
	Orchestrator     interfaces.OrchestratorService
	AuthService      interfaces.AuthService
	MailerService    interfaces.MailerService
	EvidenceService  interfaces.EvidenceService
	SchedulerService interfaces.SchedulerService
	StatusService    *status.Service

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	VariableHandler   *handlers.VariableHandler
	DocGenHandler     *handlers.DocGenHandler
	GenerationHandler *handlers.GenerationHandler
	KVHandler         *handlers.KVHandler
	ConfigHandler     *handlers.ConfigHandler
	SchedulerHandler  *handlers.SchedulerHandler
	StatusHandler     *handlers.StatusHandler
	WSHandler         *handlers.WebSocketHandler
	LogBridge         *handlers.WebSocketLogBridge
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event bus and WebSocket handler come up early so every later service
	// can publish and startup logs can reach connected clients.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.WebSocket)

	app.LogBridge = handlers.NewWebSocketLogBridge(app.WSHandler, &app.Config.WebSocket)
	app.Logger.SetChannel("websocket", app.LogBridge.Channel())

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info().
		Bool("invoice_store", app.InvoiceStorage != nil).
		Bool("model_chain", app.ModelService.Available()).
		Bool("scheduler", app.Config.Schedule.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage brings up Badger, seeds the KV store from the keys directory
// and .env, and applies {key-name} replacement to the loaded config.
func (a *App) initStorage() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	ctx := context.Background()

	// File loading happens before config replacement so loaded keys can be
	// referenced from config values.
	if loader, ok := storageManager.(variableLoader); ok {
		if err := loader.LoadVariablesFromFiles(ctx, a.Config.Variables.Dir); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to load variables from files")
		}
		if err := loader.LoadEnvFile(ctx, ".env"); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to load .env file")
		}
	}

	kvMap, err := a.StorageManager.KVStorage().GetAll(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
	} else if len(kvMap) > 0 {
		if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
		} else {
			a.Logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
		}
	}

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// Invoice read model. Optional: without a DSN the variable API still
	// serves registry sources and generation runs on caller-provided data.
	if a.Config.Database.DSN != "" {
		pool, err := postgres.NewPool(context.Background(), a.Logger, &a.Config.Database, parseDuration(a.Config.Database.ConnectTimeout, 5*time.Second))
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Invoice read model unavailable - continuing without it")
		} else {
			a.Pool = pool
			a.InvoiceStorage = postgres.NewInvoiceStorage(pool, a.Logger)
		}
	} else {
		a.Logger.Info().Msg("No database DSN configured - invoice read model disabled")
	}

	// Data source registry (SQL, REST, curl)
	a.SourceService = sources.NewService(a.Logger, a.Pool)
	a.Logger.Debug().Int("sources", len(a.SourceService.List())).Msg("Data source registry initialized")

	// Template registry with optional filesystem overrides
	templateService, err := templates.NewService(a.Logger, a.Config.Templates.OverrideDir)
	if err != nil {
		return fmt.Errorf("failed to initialize template service: %w", err)
	}
	a.TemplateService = templateService

	// Model fallback chain; audit trail goes to Badger
	a.ModelService = llm.NewService(a.Config, a.StorageManager.KVStorage(), a.StorageManager.AuditStorage(), a.Logger)
	if !a.ModelService.Available() {
		a.Logger.Info().Msg("No model endpoints configured - deterministic generation only")
	}

	// Validation pipeline (structure, legal, financial, model review, final)
	a.Validator = validation.NewService(a.ModelService, a.Logger)

	// Markdown/HTML/PDF renderer
	a.RenderService = render.NewService(render.Config{
		DisableBrowser: a.Config.Render.Engine == "fpdf",
		PDFTimeout:     parseDuration(a.Config.Render.ChromeTimeout, 30*time.Second),
	}, a.Logger)

	// Filesystem version store under the artifact data root
	versionService, err := versions.NewService(versions.Config{
		BaseDir: a.Config.Storage.DataRoot,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize version store: %w", err)
	}
	a.VersionService = versionService

	// Document generator
	a.GeneratorService = generator.NewService(a.Config, a.TemplateService, a.SourceService, a.ModelService, a.Logger)

	// Auth, mail, evidence
	a.AuthService = auth.NewService(a.Config, a.StorageManager.KVStorage(), a.Logger)
	a.MailerService = mailer.NewService(a.Config, a.StorageManager.KVStorage(), a.Logger)
	a.EvidenceService = evidence.NewService(a.Config, a.Logger)

	// Orchestrator drives generate, validate, refine, render, commit
	a.Orchestrator = orchestrator.NewService(a.Config, orchestrator.Deps{
		Generator: a.GeneratorService,
		Validator: a.Validator,
		Renderer:  a.RenderService,
		Versions:  a.VersionService,
		Records:   a.StorageManager.GenerationStorage(),
		Invoices:  a.InvoiceStorage,
		Events:    a.EventService,
		Mailer:    a.MailerService,
		Evidence:  a.EvidenceService,
	}, a.Logger)

	// Status service follows the generation event stream
	a.StatusService = status.NewService(a.EventService, a.Logger)

	// Background jobs: FX refresh, version pruning, summary regeneration
	schedulerService := scheduler.NewService(a.EventService, a.Logger)
	a.SchedulerService = schedulerService
	if err := scheduler.RegisterDefaultJobs(schedulerService, a.Config, scheduler.JobDeps{
		Sources:      a.SourceService,
		KV:           a.StorageManager.KVStorage(),
		Versions:     a.VersionService,
		Records:      a.StorageManager.GenerationStorage(),
		Orchestrator: a.Orchestrator,
	}); err != nil {
		return fmt.Errorf("failed to register scheduled jobs: %w", err)
	}
	if a.Config.Schedule.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to start scheduler")
		}
	}

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	baseURL := a.Config.VerificationBaseURL()

	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.VariableHandler = handlers.NewVariableHandler(a.SourceService, a.InvoiceStorage, baseURL, a.Logger)
	a.DocGenHandler = handlers.NewDocGenHandler(a.TemplateService, a.GeneratorService, a.RenderService, a.Logger)
	a.GenerationHandler = handlers.NewGenerationHandler(a.Orchestrator, a.StorageManager.GenerationStorage(), a.VersionService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KVStorage(), a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.Logger, a.Config)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.InvoiceStorage, a.ModelService, a.Logger)

	return nil
}

// Close closes all application resources in reverse initialization order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LogBridge != nil {
		a.LogBridge.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug().Msg("Postgres pool closed")
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
