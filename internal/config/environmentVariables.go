package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	FALLBACK_BLOB_TO_INTERNALSTORE  = true //same for minio; uploads then live in process memory
	TRACE_ID_KEY                    = "traceId"

	//embeddings
	DefaultEmbeddingModel               = "text-embedding-3-small"
	EmbeddingOutputDimensionality int32 = 1536
	DefaultEmbeddingBatchSize           = 100
	DefaultEmbeddingProvider            = "openai" //or "gemini"
	GoogleEmbeddingModel                = "gemini-embedding-001"

	//chunking
	DefaultChunkSizeTokens    = 1024
	DefaultChunkOverlapTokens = 200

	//retrieval
	DefaultTopK              = 5
	MaxTopK                  = 20
	DefaultAnnM              = 16
	DefaultAnnEfConstruction = 64
	DefaultAnnEfSearch       = 40

	//synthesis
	DefaultSynthesizerModel         = "gpt-4o"
	DefaultSummaryModel             = "gpt-4o-mini"
	ModelTemperature        float64 = 0.7
	DefaultSynthesizerMaxTokens     = 500
	DefaultContextBudgetTokens      = 12000
	GeminiModelName                 = "gemini-2.5-flash-lite-preview-09-2025"

	//prompts
	ChatSystemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
		"Answer the user's question based ONLY on the information in the context. " +
		"If the context doesn't contain enough information to answer the question, " +
		"say 'I don't have enough information to answer that question based on the provided documents.'"
	SummarySystemPrompt = "You are a helpful document summarizer. Be concise and accurate."
	NoMatchesAnswer     = "I couldn't find any relevant information in your documents to answer this question."
	ContextSeparator    = "\n\n---\n\n"
	SourcePreviewChars  = 200

	//upstream retry policy
	MaxRetryAttempts    = 3
	RetryBaseDelay      = 500 * time.Millisecond
	RetryBackoffFactor  = 2
	RetryJitterFraction = 0.25

	//per-stage wall clocks
	FetchTimeout       = 30 * time.Second
	ParseTimeout       = 120 * time.Second
	EmbedBatchTimeout  = 60 * time.Second
	SynthesizeTimeout  = 60 * time.Second
	PerMessageDeadline = 10 * time.Minute

	//outbound embedding throttle
	EmbedRequestsPerSecond = 5
	EmbedBurstSize         = 10

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 60 * time.Second
	WriteTimeout           = 60 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//admission bounds
	MaxFilesPerUpload  = 100
	MaxFileSizeMB      = 50
	QueueDepthLimit    = 1000
	MaxQuestionLength  = 2000
	DefaultListLimit   = 50
	MaxListLimit       = 100
	APIKeyMinLength    = 32

	//client rate limiting (fixed window, per client key)
	RateLimitRequests = 10
	RateLimitWindow   = 60 * time.Second

	//work queue
	DefaultVisibilityTimeout = 15 * time.Minute
	QueueLongPollWait        = 20 * time.Second
	QueueReaperInterval      = 30 * time.Second

	//reconciliation of documents stuck in Pending
	SweeperInterval       = 5 * time.Minute
	PendingStuckThreshold = 10 * time.Minute

	//llm
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost        = "127.0.0.1"
	redisPort        = "6379"
	DefaultRedisAddr = redisHost + ":" + redisPort

	//redis has 16 DBs we can use
	RedisTaskStore      = 0
	RedisQueueStore     = 1
	RedisRateLimitStore = 2

	//redis timeouts
	DefaultTaskStoreTTL   = 24 * time.Hour
	DefaultResultStoreTTL = 1 * time.Hour
	HealthCacheTTL        = 10 * time.Second

	//postgres
	defaultPostgresHost = "127.0.0.1"
	defaultPostgresPort = "5432"
	defaultPostgresDB   = "document_processor"
	defaultPostgresUser = "docuser"
	DefaultDBPoolSize   = 10
	DBPoolOverflow      = 20

	//blob storage
	DefaultMinioEndpoint = "127.0.0.1:9000"
	DefaultMinioBucket   = "documents"
	BlobHandlePrefix     = "uploads/"
)

// Effective values. Defaults above, overridable through the environment by
// Load; everything downstream reads these.
var (
	IS_PROD = false

	EmbeddingModel     = DefaultEmbeddingModel
	EmbeddingBatchSize = DefaultEmbeddingBatchSize
	EmbeddingProvider  = DefaultEmbeddingProvider

	ChunkSizeTokens    = DefaultChunkSizeTokens
	ChunkOverlapTokens = DefaultChunkOverlapTokens

	TopKDefault = DefaultTopK
	AnnEfSearch = DefaultAnnEfSearch

	SynthesizerModel     = DefaultSynthesizerModel
	SummaryModel         = DefaultSummaryModel
	SynthesizerMaxTokens = DefaultSynthesizerMaxTokens
	ContextBudgetTokens  = DefaultContextBudgetTokens

	TaskStoreTTL   = DefaultTaskStoreTTL
	ResultStoreTTL = DefaultResultStoreTTL

	VisibilityTimeout = DefaultVisibilityTimeout
	DBPoolSize        = DefaultDBPoolSize

	RedisAddr     = DefaultRedisAddr
	RedisPassword = ""

	PostgresDSN = ""

	MinioEndpoint  = DefaultMinioEndpoint
	MinioAccessKey = "minioadmin"
	MinioSecretKey = "minioadmin"
	MinioUseSSL    = false
	MinioBucket    = DefaultMinioBucket

	OpenAIAPIKey = ""
	GeminiAPIKey = ""

	//optional static bearer token; empty disables the auth middleware
	APIAuthToken = ""
)

// Load applies environment overrides on top of the compiled defaults. A
// recognized variable that fails to parse is a startup error, not a silent
// fallback.
func Load() error {
	IS_PROD = os.Getenv("IS_PROD") == "true"

	loadString("EMBEDDING_MODEL", &EmbeddingModel)
	loadString("EMBEDDING_PROVIDER", &EmbeddingProvider)
	loadString("SYNTHESIZER_MODEL", &SynthesizerModel)
	loadString("SUMMARY_MODEL", &SummaryModel)
	loadString("REDIS_ADDR", &RedisAddr)
	loadString("REDIS_PASSWORD", &RedisPassword)
	loadString("MINIO_ENDPOINT", &MinioEndpoint)
	loadString("MINIO_ACCESS_KEY", &MinioAccessKey)
	loadString("MINIO_SECRET_KEY", &MinioSecretKey)
	loadString("MINIO_BUCKET", &MinioBucket)
	loadString("OPENAI_API_KEY", &OpenAIAPIKey)
	loadString("GEMINI_API_KEY", &GeminiAPIKey)
	loadString("API_AUTH_TOKEN", &APIAuthToken)
	MinioUseSSL = os.Getenv("MINIO_USE_SSL") == "true"

	if err := loadInt("EMBEDDING_BATCH_SIZE", &EmbeddingBatchSize); err != nil {
		return err
	}
	if err := loadInt("CHUNK_SIZE_TOKENS", &ChunkSizeTokens); err != nil {
		return err
	}
	if err := loadInt("CHUNK_OVERLAP_TOKENS", &ChunkOverlapTokens); err != nil {
		return err
	}
	if err := loadInt("RETRIEVER_TOP_K_DEFAULT", &TopKDefault); err != nil {
		return err
	}
	if err := loadInt("ANN_EF_SEARCH", &AnnEfSearch); err != nil {
		return err
	}
	if err := loadInt("SYNTHESIZER_MAX_TOKENS", &SynthesizerMaxTokens); err != nil {
		return err
	}
	if err := loadInt("SYNTHESIZER_CONTEXT_BUDGET", &ContextBudgetTokens); err != nil {
		return err
	}
	if err := loadInt("DB_POOL_SIZE", &DBPoolSize); err != nil {
		return err
	}
	if err := loadDuration("PROGRESS_TASK_TTL", &TaskStoreTTL); err != nil {
		return err
	}
	if err := loadDuration("RESULT_CACHE_TTL", &ResultStoreTTL); err != nil {
		return err
	}
	if err := loadDuration("VISIBILITY_TIMEOUT", &VisibilityTimeout); err != nil {
		return err
	}

	PostgresDSN = os.Getenv("POSTGRES_DSN")
	if PostgresDSN == "" {
		PostgresDSN = buildPostgresDSN()
	}

	if err := validate(); err != nil {
		return err
	}
	return nil
}

func validate() error {
	switch EmbeddingProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown EMBEDDING_PROVIDER %q", EmbeddingProvider)
	}
	if ChunkOverlapTokens >= ChunkSizeTokens {
		return fmt.Errorf("config: chunk overlap %d must be smaller than chunk size %d", ChunkOverlapTokens, ChunkSizeTokens)
	}
	if TopKDefault < 1 || TopKDefault > MaxTopK {
		return fmt.Errorf("config: RETRIEVER_TOP_K_DEFAULT %d out of range [1,%d]", TopKDefault, MaxTopK)
	}
	if VisibilityTimeout < 2*ParseTimeout {
		return fmt.Errorf("config: VISIBILITY_TIMEOUT %s below twice the longest stage timeout", VisibilityTimeout)
	}
	return nil
}

func buildPostgresDSN() string {
	host := envOr("POSTGRES_HOST", defaultPostgresHost)
	port := envOr("POSTGRES_PORT", defaultPostgresPort)
	db := envOr("POSTGRES_DB", defaultPostgresDB)
	user := envOr("POSTGRES_USER", defaultPostgresUser)
	password := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, db)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func loadInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q is not an integer: %w", key, v, err)
	}
	*target = parsed
	return nil
}

func loadDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q is not a duration: %w", key, v, err)
	}
	*target = parsed
	return nil
}
