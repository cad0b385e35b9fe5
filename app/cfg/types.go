package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Queue configuration
	RedisURL string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int // seconds
	FetchTimeout      int // seconds
	FailureThreshold  int
	RecoveryLimit     int
	RetentionDays     int // 0 keeps entries forever
	SummaryMaxLen     int
	APIAccessKey      string

	// Search configuration
	SearchMaxWords int
	SearchTopK     int
	SearchMinScore float64

	// Embedding provider configuration
	EmbeddingURL        string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbedMaxChars       int
	ReindexCooldown     int // seconds

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
