package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Database    DatabaseConfig   `toml:"database"`
	Logging     LoggingConfig    `toml:"logging"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Variables   KeysDirConfig    `toml:"variables"` // Key/value seed directory (./keys/*.toml)
	Templates   TemplatesConfig  `toml:"templates"`
	Models      ModelsConfig     `toml:"models"`
	Generation  GenerationConfig `toml:"generation"`
	Render      RenderConfig     `toml:"render"`
	Auth        AuthConfig       `toml:"auth"`
	Mail        MailConfig       `toml:"mail"`
	Schedule    ScheduleConfig   `toml:"schedule"`
	Evidence    EvidenceConfig   `toml:"evidence"`
}

type ServerConfig struct {
	Port    int    `toml:"port"`
	Host    string `toml:"host"`
	BaseURL string `toml:"base_url"` // External base URL for verification links; derived from host/port when empty
}

type StorageConfig struct {
	Badger   BadgerConfig `toml:"badger"`
	DataRoot string       `toml:"data_root"` // Root directory for generated artifacts and their version history
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// DatabaseConfig holds the Postgres read-model connection settings
type DatabaseConfig struct {
	DSN            string `toml:"dsn"`             // postgres:// connection string; DATABASE_URL is honoured as fallback
	MaxConns       int    `toml:"max_conns"`       // Pool size
	ConnectTimeout string `toml:"connect_timeout"` // e.g. "5s"
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level broadcast to websocket clients
}

// WebSocketConfig contains configuration for websocket log/event streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
}

// KeysDirConfig contains configuration for key/value file loading (generic secrets/configuration)
type KeysDirConfig struct {
	Dir string `toml:"dir"` // Directory containing key/value files (TOML)
}

// TemplatesConfig contains document template override settings
type TemplatesConfig struct {
	OverrideDir string `toml:"override_dir"` // Directory of *.toml files overriding built-in templates
}

// ModelEndpoint describes one entry of the model fallback chain
type ModelEndpoint struct {
	Provider   string `toml:"provider"`    // "openai", "anthropic", "gemini", "local"
	Model      string `toml:"model"`       // Provider model name
	APIKey     string `toml:"api_key"`     // Credential; env vars and the KV store take precedence
	BaseURL    string `toml:"base_url"`    // Override endpoint (required for "local")
	Priority   int    `toml:"priority"`    // Lower runs earlier
	Timeout    string `toml:"timeout"`     // Per-call timeout; provider default when empty
	MaxRetries int    `toml:"max_retries"` // Attempts per endpoint before falling through
}

// ModelsConfig contains the ordered model fallback chain
type ModelsConfig struct {
	Endpoints []ModelEndpoint `toml:"endpoint"`
}

// GenerationConfig contains document generation and refinement settings
type GenerationConfig struct {
	MaxIterations     int     `toml:"max_iterations"`      // Refinement loop bound (default: 3)
	ScoreThreshold    float64 `toml:"score_threshold"`     // Refine while below this (default: 0.8)
	WarningThreshold  float64 `toml:"warning_threshold"`   // Warnings with score >= this yield status "warning" (default: 0.6)
	Temperature       float32 `toml:"temperature"`         // Model temperature for drafts and refinement (default: 0.3)
	SummaryMaxTokens  int     `toml:"summary_max_tokens"`  // Token budget for summary documents (default: 8000)
	ExpenseMaxTokens  int     `toml:"expense_max_tokens"`  // Token budget for single-expense documents (default: 2000)
	EnableModelReview bool    `toml:"enable_model_review"` // Run the optional model-review validation stage
}

// RenderConfig contains Markdown/PDF rendering settings
type RenderConfig struct {
	Engine        string `toml:"engine"`         // "auto", "chrome", "fpdf"
	Style         string `toml:"style"`          // Default stylesheet: "default", "br_document", "minimal"
	ChromeTimeout string `toml:"chrome_timeout"` // Headless print timeout (default: "30s")
}

// AuthConfig contains API authentication settings; keys live in the KV store
type AuthConfig struct {
	Enabled bool     `toml:"enabled"`
	Schemes []string `toml:"schemes"` // Accepted schemes: "api_key", "basic", "bearer"
}

// MailConfig contains outbound mail settings; SMTP credentials live in the KV store
type MailConfig struct {
	Enabled  bool   `toml:"enabled"`
	FromName string `toml:"from_name"`
}

// ScheduleConfig contains cron schedules for background jobs
type ScheduleConfig struct {
	Enabled          bool   `toml:"enabled"`
	FXRefresh        string `toml:"fx_refresh"`        // NBP exchange-rate cache refresh
	VersionPrune     string `toml:"version_prune"`     // Version-history pruning
	SummaryRegen     string `toml:"summary_regen"`     // Periodic annual-summary regeneration
	VersionPruneKeep int    `toml:"version_prune_keep"` // Revisions kept per artifact when pruning
}

// EvidenceConfig contains settings for git-commit evidence resolution
type EvidenceConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`   // GitHub token; SCRIBO_GITHUB_TOKEN takes precedence
	Timeout string `toml:"timeout"` // Per-lookup timeout (default: "10s")
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in scribo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 81, // Verification URLs default to http://localhost:81
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			DataRoot: "./data/documents",
		},
		Database: DatabaseConfig{
			DSN:            "", // DATABASE_URL fallback applies when empty
			MaxConns:       8,
			ConnectTimeout: "5s",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
		},
		Variables: KeysDirConfig{
			Dir: "./keys",
		},
		Models: ModelsConfig{
			Endpoints: nil, // Chain disabled until endpoints are configured
		},
		Generation: GenerationConfig{
			MaxIterations:     3,
			ScoreThreshold:    0.8,
			WarningThreshold:  0.6,
			Temperature:       0.3,
			SummaryMaxTokens:  8000,
			ExpenseMaxTokens:  2000,
			EnableModelReview: false,
		},
		Render: RenderConfig{
			Engine:        "auto", // Headless Chrome when reachable, fpdf otherwise
			Style:         "br_document",
			ChromeTimeout: "30s",
		},
		Auth: AuthConfig{
			Enabled: false, // Local single-user deployments run open
			Schemes: []string{"api_key", "basic", "bearer"},
		},
		Mail: MailConfig{
			Enabled:  false,
			FromName: "Scribo",
		},
		Schedule: ScheduleConfig{
			Enabled:          false,
			FXRefresh:        "15 13 * * 1-5", // NBP table A publishes business days around 12:15 CET
			VersionPrune:     "0 3 * * *",
			SummaryRegen:     "0 5 1 * *",
			VersionPruneKeep: 50,
		},
		Evidence: EvidenceConfig{
			Enabled: false,
			Timeout: "10s",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// kvStorage can be nil (secret replacement is skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files, later files overriding
// earlier ones. Priority: CLI flags > environment > last file > ... > defaults.
// kvStorage can be nil (secret replacement is skipped).
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// {key-name} references resolve against the KV store after parsing,
	// so secrets never need to live in the files themselves
	if kvStorage != nil {
		logger := arbor.NewLogger()
		kvMap, err := kvStorage.GetAll(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else if len(kvMap) > 0 {
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to apply key/value replacements to config")
			} else {
				logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
			}
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIBO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("SCRIBO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIBO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if baseURL := os.Getenv("SCRIBO_BASE_URL"); baseURL != "" {
		config.Server.BaseURL = baseURL
	}

	// Storage configuration
	if badgerPath := os.Getenv("SCRIBO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dataRoot := os.Getenv("SCRIBO_DATA_ROOT"); dataRoot != "" {
		config.Storage.DataRoot = dataRoot
	}

	// Database configuration; DATABASE_URL is the conventional fallback
	if dsn := os.Getenv("SCRIBO_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" && config.Database.DSN == "" {
		config.Database.DSN = dsn
	}
	if maxConns := os.Getenv("SCRIBO_DATABASE_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.Atoi(maxConns); err == nil {
			config.Database.MaxConns = mc
		}
	}

	// Logging configuration
	if level := os.Getenv("SCRIBO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SCRIBO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("SCRIBO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("SCRIBO_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// WebSocket configuration
	if minLevel := os.Getenv("SCRIBO_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}

	// Templates configuration
	if dir := os.Getenv("SCRIBO_TEMPLATES_DIR"); dir != "" {
		config.Templates.OverrideDir = dir
	}

	// Model chain credentials: provider env keys fill endpoints that carry none
	applyModelKeyOverrides(config)

	// Generation configuration
	if maxIterations := os.Getenv("SCRIBO_GENERATION_MAX_ITERATIONS"); maxIterations != "" {
		if mi, err := strconv.Atoi(maxIterations); err == nil {
			config.Generation.MaxIterations = mi
		}
	}
	if threshold := os.Getenv("SCRIBO_GENERATION_SCORE_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Generation.ScoreThreshold = t
		}
	}
	if review := os.Getenv("SCRIBO_GENERATION_MODEL_REVIEW"); review != "" {
		if r, err := strconv.ParseBool(review); err == nil {
			config.Generation.EnableModelReview = r
		}
	}

	// Render configuration
	if engine := os.Getenv("SCRIBO_RENDER_ENGINE"); engine != "" {
		config.Render.Engine = engine
	}
	if style := os.Getenv("SCRIBO_RENDER_STYLE"); style != "" {
		config.Render.Style = style
	}

	// Auth configuration
	if enabled := os.Getenv("SCRIBO_AUTH_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Auth.Enabled = e
		}
	}

	// Schedule configuration
	if enabled := os.Getenv("SCRIBO_SCHEDULE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Schedule.Enabled = e
		}
	}

	// Evidence configuration
	if token := os.Getenv("SCRIBO_GITHUB_TOKEN"); token != "" {
		config.Evidence.Token = token
		config.Evidence.Enabled = true
	}
}

// applyModelKeyOverrides fills endpoint credentials from provider environment
// variables. An endpoint's explicit api_key wins over the environment.
func applyModelKeyOverrides(config *Config) {
	envKeys := map[string][]string{
		"anthropic": {"SCRIBO_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini":    {"SCRIBO_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"openai":    {"SCRIBO_OPENAI_API_KEY", "OPENAI_API_KEY"},
	}

	for i := range config.Models.Endpoints {
		ep := &config.Models.Endpoints[i]
		if ep.APIKey != "" {
			continue
		}
		for _, envName := range envKeys[strings.ToLower(ep.Provider)] {
			if value := os.Getenv(envName); value != "" {
				ep.APIKey = value
				break
			}
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// VerificationBaseURL returns the base URL used to synthesise verification
// links, deriving one from host/port when no explicit base_url is configured.
func (c *Config) VerificationBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// DatabaseConnectTimeout parses the configured connect timeout with a 5s fallback.
func (c *Config) DatabaseConnectTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Database.ConnectTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → KV store → config fallback → error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"anthropic_api_key": {"SCRIBO_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini_api_key":    {"SCRIBO_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"openai_api_key":    {"SCRIBO_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"github_token":      {"SCRIBO_GITHUB_TOKEN", "GITHUB_TOKEN"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateJobSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
