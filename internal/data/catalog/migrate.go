package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/pkg/logger_i"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const hnswIndexName = "idx_chunks_embedding_hnsw"

// Open connects, migrates the schema and builds the ANN index. The returned
// catalog is ready for concurrent use by the API and the worker pool.
func Open(ctx context.Context) (*PostgresCatalog, error) {
	log := logger_i.NewLogger("Catalog")

	db, err := gorm.Open(postgres.Open(config.PostgresDSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.DBPoolSize + config.DBPoolOverflow)
	sqlDB.SetMaxIdleConns(config.DBPoolSize)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("postgres is unreachable: %w", err)
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("creating pgvector extension: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&User{}, &Document{}, &DocumentChunk{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	if err := ensureHnswIndex(ctx, db, log); err != nil {
		return nil, err
	}

	instance := &PostgresCatalog{
		db:       db,
		efSearch: config.AnnEfSearch,
		logger:   log,
	}
	instance.annUsable = instance.verifyAnnIndex(ctx)
	if !instance.annUsable {
		log.Warn("ANN index not used by the planner, similarity search will fall back to a sequential scan")
	}

	log.Info("Catalog ready", "pool", config.DBPoolSize, "overflow", config.DBPoolOverflow)
	return instance, nil
}

// ensureHnswIndex builds the cosine HNSW index once; pg_indexes is checked
// first because CREATE INDEX on a large chunk table is expensive.
func ensureHnswIndex(ctx context.Context, db *gorm.DB, log *logger_i.Logger) error {
	var count int64
	err := db.WithContext(ctx).
		Raw("SELECT count(*) FROM pg_indexes WHERE indexname = ?", hnswIndexName).
		Scan(&count).Error
	if err != nil {
		return fmt.Errorf("checking for ANN index: %w", err)
	}
	if count > 0 {
		return nil
	}

	log.Info("Building HNSW index", "m", config.DefaultAnnM, "efConstruction", config.DefaultAnnEfConstruction)
	ddl := fmt.Sprintf(
		"CREATE INDEX %s ON document_chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)",
		hnswIndexName, config.DefaultAnnM, config.DefaultAnnEfConstruction,
	)
	if err := db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("creating ANN index: %w", err)
	}
	return nil
}

// verifyAnnIndex EXPLAINs a representative similarity query and reports
// whether the planner picks the HNSW index.
func (c *PostgresCatalog) verifyAnnIndex(ctx context.Context) bool {
	probe := make([]float32, config.EmbeddingOutputDimensionality)
	var lines []string
	err := c.db.WithContext(ctx).
		Raw("EXPLAIN SELECT id FROM document_chunks ORDER BY embedding <=> ? LIMIT 5", pgvector.NewVector(probe)).
		Scan(&lines).Error
	if err != nil {
		c.logger.Warn("could not EXPLAIN the ANN probe query", "error", err)
		return false
	}
	plan := strings.Join(lines, "\n")
	return strings.Contains(plan, hnswIndexName)
}

// NewTestCatalog wraps an existing gorm handle, for tests that bring their
// own database.
func NewTestCatalog(db *gorm.DB) *PostgresCatalog {
	return &PostgresCatalog{
		db:        db,
		efSearch:  config.AnnEfSearch,
		annUsable: true,
		logger:    logger_i.NewLogger("test catalog"),
	}
}
