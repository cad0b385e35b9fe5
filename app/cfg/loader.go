package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"feedvault" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"feedvault" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"feedvault" description:"Database name"`

	// Queue configuration
	RedisURL string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis URL for the fetch job queue"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing seed feed files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of fetch pipeline workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed HTTP fetch timeout in seconds"`
	FailureThreshold  int    `long:"failure-threshold" env:"FAILURE_THRESHOLD" default:"10" description:"Consecutive failures before a feed is deactivated"`
	RecoveryLimit     int    `long:"recovery-limit" env:"RECOVERY_LIMIT" default:"5" description:"Maximum inactive feeds re-enabled per recovery sweep"`
	RetentionDays     int    `long:"retention-days" env:"RETENTION_DAYS" default:"90" description:"Entry retention window in days (0 disables pruning)"`
	SummaryMaxLen     int    `long:"summary-max-len" env:"SUMMARY_MAX_LEN" default:"500" description:"Maximum entry summary length"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Search configuration
	SearchMaxWords int     `long:"search-max-words" env:"SEARCH_MAX_WORDS" default:"6" description:"Maximum words considered in a keyword query"`
	SearchTopK     int     `long:"search-top-k" env:"SEARCH_TOP_K" default:"20" description:"Maximum semantic search results"`
	SearchMinScore float64 `long:"search-min-score" env:"SEARCH_MIN_SCORE" default:"0.35" description:"Minimum similarity score for semantic results"`

	// Embedding provider configuration
	EmbeddingURL        string `long:"embedding-url" env:"EMBEDDING_URL" description:"Embedding endpoint URL (OpenAI-compatible; empty disables semantic indexing)"`
	EmbeddingAPIKey     string `long:"embedding-api-key" env:"EMBEDDING_API_KEY" description:"Embedding endpoint API key (optional)"`
	EmbeddingModel      string `long:"embedding-model" env:"EMBEDDING_MODEL" default:"nomic-embed-text" description:"Embedding model name"`
	EmbeddingDimensions int    `long:"embedding-dimensions" env:"EMBEDDING_DIMENSIONS" default:"768" description:"Embedding vector dimensionality (must match the search_vectors schema)"`
	EmbedMaxChars       int    `long:"embed-max-chars" env:"EMBED_MAX_CHARS" default:"6000" description:"Character budget for embedded text"`
	ReindexCooldown     int    `long:"reindex-cooldown" env:"REINDEX_COOLDOWN" default:"600" description:"Minimum seconds between reindex runs"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"FeedVault/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:              raw.DBHost,
		DBPort:              raw.DBPort,
		DBUser:              raw.DBUser,
		DBPassword:          raw.DBPassword,
		DBName:              raw.DBName,
		RedisURL:            raw.RedisURL,
		FeedsDir:            raw.FeedsDir,
		Port:                raw.Port,
		WorkerCount:         raw.WorkerCount,
		SchedulerInterval:   raw.SchedulerInterval,
		FetchTimeout:        raw.FetchTimeout,
		FailureThreshold:    raw.FailureThreshold,
		RecoveryLimit:       raw.RecoveryLimit,
		RetentionDays:       raw.RetentionDays,
		SummaryMaxLen:       raw.SummaryMaxLen,
		APIAccessKey:        raw.APIAccessKey,
		SearchMaxWords:      raw.SearchMaxWords,
		SearchTopK:          raw.SearchTopK,
		SearchMinScore:      raw.SearchMinScore,
		EmbeddingURL:        raw.EmbeddingURL,
		EmbeddingAPIKey:     raw.EmbeddingAPIKey,
		EmbeddingModel:      raw.EmbeddingModel,
		EmbeddingDimensions: raw.EmbeddingDimensions,
		EmbedMaxChars:       raw.EmbedMaxChars,
		ReindexCooldown:     raw.ReindexCooldown,
		UserAgent:           raw.UserAgent,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting replaces the global configuration. Tests only.
func SetForTesting(c *Cfg) {
	globalCfg = c
}
