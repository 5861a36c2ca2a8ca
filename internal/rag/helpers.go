package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/embedding"
	"github.com/akolanti/docproc/internal/rag/ingest"
	"github.com/akolanti/docproc/internal/rag/llm"
	"github.com/akolanti/docproc/pkg/logger_i"
)

// deadlineExpired distinguishes the message budget running out from a
// single stage clock expiring. The caller owns ctx with the message
// deadline attached.
func deadlineExpired(ctx context.Context) bool {
	return ctx.Err() != nil
}

// failTerminal records a terminal failure on the authoritative row and
// the task cache, then tells the worker to ack. The writes run on a
// detached context because the message budget may already be spent.
func (s *service) failTerminal(ctx context.Context, log *logger_i.Logger, msg taskModel.QueueMessage, documentID int64, progress int, reason string, cause error) (Disposition, error) {
	log.Error("Ingestion failed terminally", "reason", reason, "error", cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.documents.MarkFailed(wctx, documentID, reason); err != nil {
		log.Error("Could not record terminal failure", "error", err)
	}
	s.saveProgress(wctx, msg, taskModel.StatusFailed, progress, reason)
	metrics.CountDocumentProcessed("failed")

	return DispositionFailedTerminal, fmt.Errorf("%s: %w", reason, cause)
}

// saveProgress updates the advisory task record. Cache trouble is
// logged and swallowed, the document row stays authoritative.
func (s *service) saveProgress(ctx context.Context, msg taskModel.QueueMessage, status taskModel.Status, progress int, errMsg string) {
	record := taskModel.TaskRecord{
		TaskID:   msg.TaskID,
		Status:   status,
		Progress: progress,
		Filename: msg.Filename,
		Error:    errMsg,
	}
	now := time.Now().UTC()
	if status == taskModel.StatusProcessing && progress == taskModel.ProgressClaimed {
		record.StartedAt = now
	}
	if status == taskModel.StatusCompleted || status == taskModel.StatusFailed {
		record.CompletedAt = now
	}
	if err := s.tasks.SaveTask(ctx, record); err != nil {
		s.logger.Warn("Progress cache write failed", "taskId", msg.TaskID, "error", err)
	}
}

func (s *service) saveResult(ctx context.Context, msg taskModel.QueueMessage, parsed commonModels.ParsedDocument, extractionSeconds float64, summary string) {
	result := taskModel.CachedResult{
		TaskID:                msg.TaskID,
		Filename:              msg.Filename,
		Text:                  parsed.Text,
		Summary:               summary,
		PageCount:             parsed.PageCount,
		ExtractionTimeSeconds: extractionSeconds,
	}
	if err := s.tasks.SaveResult(ctx, result); err != nil {
		s.logger.Warn("Result cache write failed", "taskId", msg.TaskID, "error", err)
	}
}

// executeFetchStep spools the blob into a scratch file. The returned
// cleanup removes the file and must run on every exit path of the
// caller.
func (s *service) executeFetchStep(ctx context.Context, log *logger_i.Logger, msg taskModel.QueueMessage) (string, func(), error) {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("fetch", time.Since(start)) }()

	fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	reader, err := s.blobs.Get(fetchCtx, msg.BlobHandle)
	if err != nil {
		return "", nil, fmt.Errorf("fetching %s: %w", msg.BlobHandle, err)
	}
	defer reader.Close()

	ext := filepath.Ext(msg.Filename)
	if ext == "" {
		ext = ".pdf"
	}
	scratch, err := os.CreateTemp("", "docproc-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch file: %w", err)
	}

	if _, err := io.Copy(scratch, reader); err != nil {
		scratch.Close()
		os.Remove(scratch.Name())
		return "", nil, fmt.Errorf("spooling %s: %w", msg.BlobHandle, err)
	}
	if err := scratch.Close(); err != nil {
		os.Remove(scratch.Name())
		return "", nil, fmt.Errorf("closing scratch file: %w", err)
	}

	path := scratch.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Scratch file cleanup failed", "path", path, "error", err)
		}
	}
	log.Debug("Fetched blob to scratch", "handle", msg.BlobHandle, "path", path)
	return path, cleanup, nil
}

func (s *service) executeParseStep(ctx context.Context, log *logger_i.Logger, path string) (commonModels.ParsedDocument, error) {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("parse", time.Since(start)) }()

	parseCtx, cancel := context.WithTimeout(ctx, config.ParseTimeout)
	defer cancel()

	return s.parser.Parse(parseCtx, path)
}

func (s *service) executeChunkStep(log *logger_i.Logger, text string) []commonModels.PlannedChunk {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("chunk", time.Since(start)) }()

	chunks := s.planner.Plan(text)
	log.Debug("Planned chunks", "count", len(chunks))
	return chunks
}

// executeEmbedStep embeds chunk texts in batches, keeping vector i
// aligned to chunk i across batches. Every vector is validated and
// normalized before it may be persisted.
func (s *service) executeEmbedStep(ctx context.Context, log *logger_i.Logger, chunks []commonModels.PlannedChunk) ([][]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("embed", time.Since(start)) }()

	batchSize := config.EmbeddingBatchSize
	vectors := make([][]float32, 0, len(chunks))

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		log.Debug("Embedding batch", "from", i, "size", len(batch))
		batchCtx, cancel := context.WithTimeout(ctx, config.EmbedBatchTimeout)
		batchVectors, err := s.embedder.BatchEmbedding(batchCtx, texts)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("embedding batch at %d: %w", i, err)
		}
		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrInvariant, len(batchVectors), len(batch))
		}

		for j, vec := range batchVectors {
			if err := embedding.Validate(vec); err != nil {
				return nil, fmt.Errorf("%w: chunk %d: %v", ErrInvariant, batch[j].Index, err)
			}
			vectors = append(vectors, embedding.Normalize(vec))
		}
	}
	return vectors, nil
}

func (s *service) executeSummaryStep(ctx context.Context, log *logger_i.Logger, prompt, text string) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("summarize", time.Since(start)) }()

	synthCtx, cancel := context.WithTimeout(ctx, config.SynthesizeTimeout)
	defer cancel()

	clipped := ingest.ClipTokens(text, config.ContextBudgetTokens)
	result, err := s.llmProvider.Generate(synthCtx, llm.Request{
		SystemPrompt: config.SummarySystemPrompt,
		UserPrompt:   prompt + config.ContextSeparator + clipped,
		Model:        config.SummaryModel,
		Temperature:  config.ModelTemperature,
		MaxTokens:    config.SynthesizerMaxTokens,
	})
	if err != nil {
		return "", err
	}
	log.Debug("Summary generated", "length", len(result.Text))
	return result.Text, nil
}

func (s *service) executePersistStep(ctx context.Context, log *logger_i.Logger, documentID int64, outcome catalog.IngestionOutcome) error {
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("persist", time.Since(start)) }()

	log.Debug("Persisting ingestion outcome", "chunks", len(outcome.Chunks))
	return s.documents.CompleteIngestion(ctx, documentID, outcome)
}

func (s *service) executeQueryEmbeddingStep(ctx context.Context, log *logger_i.Logger, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	embedCtx, cancel := context.WithTimeout(ctx, config.EmbedBatchTimeout)
	defer cancel()

	vec, err := s.embedder.GetEmbedding(embedCtx, question)
	if err != nil {
		return nil, err
	}
	if err := embedding.Validate(vec); err != nil {
		return nil, err
	}
	return embedding.Normalize(vec), nil
}

func (s *service) executeRetrievalStep(ctx context.Context, log *logger_i.Logger, userID int64, vec []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error) {
	start := time.Now()
	defer func() { metrics.CaptureRetrievalMetrics(time.Since(start)) }()

	chunks, err := s.documents.AnnSearch(ctx, userID, vec, topK, documentID)
	if err != nil {
		return nil, err
	}
	log.Debug("Retrieved chunks", "count", len(chunks))
	return chunks, nil
}

func (s *service) executeSynthesisStep(ctx context.Context, log *logger_i.Logger, question, contextText, model string) (llm.Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("synthesis", time.Since(start)) }()

	synthCtx, cancel := context.WithTimeout(ctx, config.SynthesizeTimeout)
	defer cancel()

	userPrompt := fmt.Sprintf(
		"Context from documents:\n\n%s\n\n---\n\nQuestion: %s\n\nPlease provide a clear and concise answer based on the context above.",
		contextText, question)
	return s.llmProvider.Generate(synthCtx, llm.Request{
		SystemPrompt: config.ChatSystemPrompt,
		UserPrompt:   userPrompt,
		Model:        model,
		Temperature:  config.ModelTemperature,
		MaxTokens:    config.SynthesizerMaxTokens,
	})
}

// buildContext joins chunk texts in rank order, each annotated with its
// provenance. Chunks are never truncated individually; once the budget
// is spent the remaining tail of the list is dropped. The top chunk is
// always included whole.
func buildContext(chunks []commonModels.RetrievedChunk, budgetTokens int) string {
	var parts []string
	used := 0
	for i, chunk := range chunks {
		part := fmt.Sprintf("[Source: %s, Chunk %d]\n%s", chunk.Filename, chunk.ChunkIndex, chunk.Text)
		cost := ingest.ApproxTokens(part)
		if i > 0 && used+cost > budgetTokens {
			break
		}
		parts = append(parts, part)
		used += cost
	}
	return strings.Join(parts, config.ContextSeparator)
}

func sourceRefs(chunks []commonModels.RetrievedChunk) []commonModels.SourceRef {
	sources := make([]commonModels.SourceRef, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, commonModels.SourceRef{
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			ChunkIndex: chunk.ChunkIndex,
			Similarity: chunk.Similarity,
			Preview:    preview(chunk.Text, config.SourcePreviewChars),
		})
	}
	return sources
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
