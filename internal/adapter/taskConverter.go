package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/docproc/internal/api"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
)

func ToUploadResponse(taskIDs []string) api.UploadResponse {
	return api.UploadResponse{
		TaskIDs:    taskIDs,
		TotalFiles: len(taskIDs),
		Message:    fmt.Sprintf("Successfully queued %d file(s) for processing", len(taskIDs)),
	}
}

func ToStatusResponse(record taskModel.TaskRecord) api.StatusResponse {
	return api.StatusResponse{
		TaskID:      record.TaskID,
		Status:      string(record.Status),
		Progress:    record.Progress,
		Filename:    record.Filename,
		CreatedAt:   record.CreatedAt,
		StartedAt:   optionalTime(record.StartedAt),
		CompletedAt: optionalTime(record.CompletedAt),
		Error:       record.Error,
	}
}

func ToResultResponse(result taskModel.CachedResult) api.ResultResponse {
	return api.ResultResponse{
		TaskID:                result.TaskID,
		Filename:              result.Filename,
		Text:                  result.Text,
		Summary:               result.Summary,
		PageCount:             result.PageCount,
		ExtractionTimeSeconds: result.ExtractionTimeSeconds,
	}
}

func ToTaskListResponse(records []taskModel.TaskRecord, total int64) api.TaskListResponse {
	items := make([]api.StatusResponse, 0, len(records))
	for _, record := range records {
		items = append(items, ToStatusResponse(record))
	}
	return api.TaskListResponse{Items: items, Total: total}
}

func ToDocumentResponse(document catalog.Document) api.DocumentResponse {
	return api.DocumentResponse{
		ID:          document.ID,
		Filename:    document.Filename,
		Status:      string(document.Status),
		PageCount:   document.PageCount,
		Summary:     document.Summary,
		Error:       document.ErrorMessage,
		CreatedAt:   document.CreatedAt,
		CompletedAt: document.CompletedAt,
	}
}

func ToDocumentListResponse(documents []catalog.Document, total int64) api.DocumentListResponse {
	items := make([]api.DocumentResponse, 0, len(documents))
	for _, document := range documents {
		items = append(items, ToDocumentResponse(document))
	}
	return api.DocumentListResponse{Items: items, Total: total}
}

func ToUserResponse(user catalog.User) api.UserResponse {
	return api.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		APIKey:    user.APIKey,
		CreatedAt: user.CreatedAt,
	}
}

func ToChatResponse(answer commonModels.ChatAnswer) api.ChatResponse {
	sources := make([]api.SourceResponse, 0, len(answer.Sources))
	for _, source := range answer.Sources {
		sources = append(sources, api.SourceResponse{
			DocumentID: source.DocumentID,
			Filename:   source.Filename,
			ChunkIndex: source.ChunkIndex,
			Similarity: source.Similarity,
			Preview:    source.Preview,
		})
	}

	var usage *api.UsageResponse
	if answer.Usage.TotalTokens > 0 {
		usage = &api.UsageResponse{
			PromptTokens:     answer.Usage.PromptTokens,
			CompletionTokens: answer.Usage.CompletionTokens,
			TotalTokens:      answer.Usage.TotalTokens,
		}
	}

	return api.ChatResponse{
		Answer:      answer.Answer,
		Sources:     sources,
		ChunksFound: answer.ChunksFound,
		Model:       answer.Model,
		Usage:       usage,
	}
}

func BadRequest(message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Error:      message,
		StatusCode: code,
		Timestamp:  time.Now().UTC(),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
