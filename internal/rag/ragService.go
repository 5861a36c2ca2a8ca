package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/blob"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/embedding"
	"github.com/akolanti/docproc/internal/rag/ingest"
	"github.com/akolanti/docproc/internal/rag/llm"
	"github.com/akolanti/docproc/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------

Service is the public contract the worker and the handlers program
against. The lowercase service struct holds the actual dependencies
(catalog, blob store, provider clients) so nothing outside the package
can reach them directly. NewService links the two, which is also what
lets the tests swap every dependency for a mock.
*/

// Disposition tells the worker what to do with the queue message after
// a processing attempt.
type Disposition int

const (
	// DispositionCompleted acks the message, document is Completed.
	DispositionCompleted Disposition = iota
	// DispositionFailedTerminal acks the message, document is Failed.
	DispositionFailedTerminal
	// DispositionRetry leaves the message unacked for redelivery.
	DispositionRetry
	// DispositionSkip acks without touching the document (duplicate
	// delivery, deleted document, poison payload).
	DispositionSkip
)

// ErrInvariant marks embedding results that must never be persisted:
// misaligned batches, wrong dimensions, non-finite components.
var ErrInvariant = errors.New("embedding invariant violated")

// ChatParams is one retrieval question. DocumentID zero searches the
// user's whole corpus; TopK zero and Model empty take the configured
// defaults.
type ChatParams struct {
	Question   string
	DocumentID int64
	TopK       int
	Model      string
}

type Service interface {
	IngestDocument(ctx context.Context, msg taskModel.QueueMessage) (Disposition, error)
	Chat(ctx context.Context, userID int64, params ChatParams) (commonModels.ChatAnswer, error)
}

type service struct {
	documents   catalog.Catalog
	blobs       blob.Store
	tasks       taskModel.TaskStore
	parser      ingest.Parser
	planner     *ingest.Planner
	embedder    embedding.Embedder
	llmProvider llm.Provider
	logger      *logger_i.Logger
}

// NewService constructor
func NewService(documents catalog.Catalog, blobs blob.Store, tasks taskModel.TaskStore, parser ingest.Parser, planner *ingest.Planner, em embedding.Embedder, provider llm.Provider) Service {
	return &service{
		documents:   documents,
		blobs:       blobs,
		tasks:       tasks,
		parser:      parser,
		planner:     planner,
		embedder:    em,
		llmProvider: provider,
		logger:      logger_i.NewLogger("RAG Service :"),
	}
}

// IngestDocument drives one queue message through fetch, parse, chunk,
// embed and persist. Progress lands in the task cache after each stage;
// the document row only ever moves Pending -> Processing -> terminal.
func (s *service) IngestDocument(ctx context.Context, msg taskModel.QueueMessage) (Disposition, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	log := s.logger
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		log = log.With("traceId", traceId)
	}
	log = log.With("taskId", msg.TaskID, "filename", msg.Filename)

	ctx, cancel := context.WithTimeout(ctx, config.PerMessageDeadline)
	defer cancel()

	documentID, err := strconv.ParseInt(msg.TaskID, 10, 64)
	if err != nil {
		log.Error("Dropping message with malformed task id", "error", err)
		return DispositionSkip, fmt.Errorf("malformed task id %q: %w", msg.TaskID, err)
	}

	doc, err := s.documents.GetDocument(ctx, documentID)
	if errors.Is(err, catalog.ErrNotFound) {
		log.Info("Document gone before processing, dropping message")
		return DispositionSkip, nil
	}
	if err != nil {
		return DispositionRetry, fmt.Errorf("loading document %d: %w", documentID, err)
	}
	if doc.Status == taskModel.StatusCompleted {
		log.Info("Document already completed, dropping duplicate delivery")
		return DispositionSkip, nil
	}

	if err := s.documents.MarkProcessing(ctx, documentID); err != nil {
		return DispositionRetry, fmt.Errorf("marking document %d processing: %w", documentID, err)
	}
	s.saveProgress(ctx, msg, taskModel.StatusProcessing, taskModel.ProgressClaimed, "")

	// Fetch
	scratchPath, cleanup, err := s.executeFetchStep(ctx, log, msg)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressClaimed, "source file missing from storage", err)
		}
		if deadlineExpired(ctx) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressClaimed, "processing deadline exceeded", err)
		}
		return DispositionRetry, err
	}
	defer cleanup()
	s.saveProgress(ctx, msg, taskModel.StatusProcessing, taskModel.ProgressFetched, "")

	// Parse
	parseStart := time.Now()
	parsed, err := s.executeParseStep(ctx, log, scratchPath)
	extractionSeconds := time.Since(parseStart).Seconds()
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressFetched, "no extractable text", err)
		}
		if deadlineExpired(ctx) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressFetched, "processing deadline exceeded", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// only the parse clock ran out, redelivery gets another try
			return DispositionRetry, err
		}
		return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressFetched, "document could not be parsed", err)
	}
	s.saveProgress(ctx, msg, taskModel.StatusProcessing, taskModel.ProgressParsed, "")

	// Chunk
	chunks := s.executeChunkStep(log, parsed.Text)
	if len(chunks) == 0 {
		return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressParsed, "no extractable text", ingest.ErrNoText)
	}
	s.saveProgress(ctx, msg, taskModel.StatusProcessing, taskModel.ProgressChunked, "")

	// Embed
	vectors, err := s.executeEmbedStep(ctx, log, chunks)
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressChunked, "embedding produced unusable vectors", err)
		}
		if deadlineExpired(ctx) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressChunked, "processing deadline exceeded", err)
		}
		return DispositionRetry, err
	}
	s.saveProgress(ctx, msg, taskModel.StatusProcessing, taskModel.ProgressEmbedded, "")

	// Optional summary, never fatal
	summary := ""
	if msg.Prompt != "" {
		summary, err = s.executeSummaryStep(ctx, log, msg.Prompt, parsed.Text)
		if err != nil {
			log.Warn("Summary generation failed, continuing without it", "error", err)
			summary = ""
		}
	}

	// Persist
	inserts := make([]catalog.ChunkInsert, len(chunks))
	for i, c := range chunks {
		inserts[i] = catalog.ChunkInsert{
			Index:      c.Index,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			Embedding:  vectors[i],
		}
	}
	outcome := catalog.IngestionOutcome{
		ResultText:            parsed.Text,
		PageCount:             parsed.PageCount,
		ExtractionTimeSeconds: extractionSeconds,
		Chunks:                inserts,
	}
	if err := s.executePersistStep(ctx, log, documentID, outcome); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			log.Info("Document deleted mid flight, dropping message")
			return DispositionSkip, nil
		}
		if deadlineExpired(ctx) {
			return s.failTerminal(ctx, log, msg, documentID, taskModel.ProgressEmbedded, "processing deadline exceeded", err)
		}
		return DispositionRetry, err
	}
	if summary != "" {
		if err := s.documents.SetSummary(ctx, documentID, summary); err != nil {
			log.Warn("Summary write failed", "error", err)
		}
	}

	s.saveProgress(ctx, msg, taskModel.StatusCompleted, taskModel.ProgressPersisted, "")
	s.saveResult(ctx, msg, parsed, extractionSeconds, summary)
	metrics.CountDocumentProcessed("completed")

	log.Info("Document ingestion complete", "chunks", len(chunks), "pages", parsed.PageCount)
	return DispositionCompleted, nil
}

// Chat answers a question over the user's corpus: embed the question,
// retrieve nearest chunks, synthesize an answer grounded in them.
func (s *service) Chat(ctx context.Context, userID int64, params ChatParams) (commonModels.ChatAnswer, error) {
	log := s.logger
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		log = log.With("traceId", traceId)
	}
	log = log.With("userId", userID)

	topK := params.TopK
	if topK <= 0 {
		topK = config.TopKDefault
	}
	if topK > config.MaxTopK {
		topK = config.MaxTopK
	}

	if params.DocumentID != 0 {
		if _, err := s.documents.GetOwnedDocument(ctx, userID, params.DocumentID); err != nil {
			return commonModels.ChatAnswer{}, err
		}
	}

	queryVector, err := s.executeQueryEmbeddingStep(ctx, log, params.Question)
	if err != nil {
		return commonModels.ChatAnswer{}, fmt.Errorf("embedding question: %w", err)
	}

	retrieved, err := s.executeRetrievalStep(ctx, log, userID, queryVector, topK, params.DocumentID)
	if err != nil {
		return commonModels.ChatAnswer{}, fmt.Errorf("searching chunks: %w", err)
	}

	model := params.Model
	if model == "" {
		model = config.SynthesizerModel
	}

	if len(retrieved) == 0 {
		log.Info("No chunks matched the question")
		return commonModels.ChatAnswer{
			Answer:      config.NoMatchesAnswer,
			Sources:     []commonModels.SourceRef{},
			ChunksFound: 0,
			Model:       model,
		}, nil
	}

	contextText := buildContext(retrieved, config.ContextBudgetTokens)
	result, err := s.executeSynthesisStep(ctx, log, params.Question, contextText, model)
	if err != nil {
		return commonModels.ChatAnswer{}, fmt.Errorf("generating answer: %w", err)
	}

	return commonModels.ChatAnswer{
		Answer:      result.Text,
		Sources:     sourceRefs(retrieved),
		ChunksFound: len(retrieved),
		Model:       result.Model,
		Usage:       result.Usage,
	}, nil
}
