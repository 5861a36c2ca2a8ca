package config

import (
	"strings"
	"testing"
	"time"
)

// stashEffectiveValues restores every Load-mutated value after the test so
// the package globals never leak between subtests.
func stashEffectiveValues(t *testing.T) {
	t.Helper()
	savedStrings := map[*string]string{
		&EmbeddingModel:    EmbeddingModel,
		&EmbeddingProvider: EmbeddingProvider,
		&SynthesizerModel:  SynthesizerModel,
		&SummaryModel:      SummaryModel,
		&RedisAddr:         RedisAddr,
		&RedisPassword:     RedisPassword,
		&MinioEndpoint:     MinioEndpoint,
		&MinioAccessKey:    MinioAccessKey,
		&MinioSecretKey:    MinioSecretKey,
		&MinioBucket:       MinioBucket,
		&OpenAIAPIKey:      OpenAIAPIKey,
		&GeminiAPIKey:      GeminiAPIKey,
		&APIAuthToken:      APIAuthToken,
		&PostgresDSN:       PostgresDSN,
	}
	savedInts := map[*int]int{
		&EmbeddingBatchSize:   EmbeddingBatchSize,
		&ChunkSizeTokens:      ChunkSizeTokens,
		&ChunkOverlapTokens:   ChunkOverlapTokens,
		&TopKDefault:          TopKDefault,
		&AnnEfSearch:          AnnEfSearch,
		&SynthesizerMaxTokens: SynthesizerMaxTokens,
		&ContextBudgetTokens:  ContextBudgetTokens,
		&DBPoolSize:           DBPoolSize,
	}
	savedDurations := map[*time.Duration]time.Duration{
		&TaskStoreTTL:      TaskStoreTTL,
		&ResultStoreTTL:    ResultStoreTTL,
		&VisibilityTimeout: VisibilityTimeout,
	}
	savedBools := map[*bool]bool{
		&IS_PROD:     IS_PROD,
		&MinioUseSSL: MinioUseSSL,
	}
	t.Cleanup(func() {
		for p, v := range savedStrings {
			*p = v
		}
		for p, v := range savedInts {
			*p = v
		}
		for p, v := range savedDurations {
			*p = v
		}
		for p, v := range savedBools {
			*p = v
		}
	})
}

// clearRecognizedEnv blanks the variables the assertions depend on so an
// ambient environment cannot skew them.
func clearRecognizedEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IS_PROD", "EMBEDDING_MODEL", "EMBEDDING_PROVIDER", "EMBEDDING_BATCH_SIZE",
		"CHUNK_SIZE_TOKENS", "CHUNK_OVERLAP_TOKENS", "RETRIEVER_TOP_K_DEFAULT",
		"ANN_EF_SEARCH", "SYNTHESIZER_MODEL", "SUMMARY_MODEL", "SYNTHESIZER_MAX_TOKENS",
		"SYNTHESIZER_CONTEXT_BUDGET", "DB_POOL_SIZE", "PROGRESS_TASK_TTL",
		"RESULT_CACHE_TTL", "VISIBILITY_TIMEOUT", "REDIS_ADDR", "REDIS_PASSWORD",
		"POSTGRES_DSN", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "MINIO_ENDPOINT", "MINIO_USE_SSL",
		"API_AUTH_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	stashEffectiveValues(t)
	clearRecognizedEnv(t)

	if err := Load(); err != nil {
		t.Fatalf("Load() with a clean environment: %v", err)
	}

	if EmbeddingModel != DefaultEmbeddingModel {
		t.Errorf("EmbeddingModel = %q, want %q", EmbeddingModel, DefaultEmbeddingModel)
	}
	if EmbeddingBatchSize != DefaultEmbeddingBatchSize {
		t.Errorf("EmbeddingBatchSize = %d, want %d", EmbeddingBatchSize, DefaultEmbeddingBatchSize)
	}
	if TopKDefault != DefaultTopK {
		t.Errorf("TopKDefault = %d, want %d", TopKDefault, DefaultTopK)
	}
	if TaskStoreTTL != DefaultTaskStoreTTL {
		t.Errorf("TaskStoreTTL = %s, want %s", TaskStoreTTL, DefaultTaskStoreTTL)
	}
	if RedisAddr != DefaultRedisAddr {
		t.Errorf("RedisAddr = %q, want %q", RedisAddr, DefaultRedisAddr)
	}
	if IS_PROD {
		t.Error("IS_PROD should default to false")
	}
	if !strings.Contains(PostgresDSN, "dbname="+defaultPostgresDB) || !strings.Contains(PostgresDSN, "sslmode=disable") {
		t.Errorf("PostgresDSN = %q, want the built default DSN", PostgresDSN)
	}
}

func TestLoadOverrides(t *testing.T) {
	stashEffectiveValues(t)
	clearRecognizedEnv(t)

	t.Setenv("IS_PROD", "true")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("EMBEDDING_BATCH_SIZE", "25")
	t.Setenv("RESULT_CACHE_TTL", "30m")
	t.Setenv("VISIBILITY_TIMEOUT", "20m")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("POSTGRES_DSN", "host=db.internal port=5432 user=svc password=x dbname=docs sslmode=require")

	if err := Load(); err != nil {
		t.Fatalf("Load() with overrides: %v", err)
	}

	if !IS_PROD {
		t.Error("IS_PROD override not applied")
	}
	if EmbeddingModel != "text-embedding-3-large" {
		t.Errorf("EmbeddingModel = %q", EmbeddingModel)
	}
	if EmbeddingBatchSize != 25 {
		t.Errorf("EmbeddingBatchSize = %d, want 25", EmbeddingBatchSize)
	}
	if ResultStoreTTL != 30*time.Minute {
		t.Errorf("ResultStoreTTL = %s, want 30m", ResultStoreTTL)
	}
	if VisibilityTimeout != 20*time.Minute {
		t.Errorf("VisibilityTimeout = %s, want 20m", VisibilityTimeout)
	}
	if RedisAddr != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q", RedisAddr)
	}
	if PostgresDSN != "host=db.internal port=5432 user=svc password=x dbname=docs sslmode=require" {
		t.Errorf("PostgresDSN = %q, want the env DSN verbatim", PostgresDSN)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-integer batch size", map[string]string{"EMBEDDING_BATCH_SIZE": "ten"}},
		{"non-duration ttl", map[string]string{"RESULT_CACHE_TTL": "soon"}},
		{"unknown embedding provider", map[string]string{"EMBEDDING_PROVIDER": "anthropic"}},
		{"overlap at least chunk size", map[string]string{"CHUNK_SIZE_TOKENS": "256", "CHUNK_OVERLAP_TOKENS": "256"}},
		{"top_k default out of range", map[string]string{"RETRIEVER_TOP_K_DEFAULT": "99"}},
		{"visibility timeout below twice the parse stage", map[string]string{"VISIBILITY_TIMEOUT": "1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stashEffectiveValues(t)
			clearRecognizedEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			if err := Load(); err == nil {
				t.Fatalf("Load() accepted %v", tt.env)
			}
		})
	}
}
