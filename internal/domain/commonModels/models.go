package commonModels

// ParsedDocument is what the parser hands back for one PDF.
type ParsedDocument struct {
	Text      string
	PageCount int
}

// PlannedChunk is one entry of the chunk planner's output. Index values are
// dense starting at 0.
type PlannedChunk struct {
	Index      int
	Text       string
	TokenCount int
}

// RetrievedChunk is a ranked search hit with provenance.
type RetrievedChunk struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// SourceRef is the per-chunk citation attached to a chat answer.
type SourceRef struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatAnswer is the orchestrator's response to one question.
type ChatAnswer struct {
	Answer      string      `json:"answer"`
	Sources     []SourceRef `json:"sources"`
	ChunksFound int         `json:"chunks_found"`
	Model       string      `json:"model"`
	Usage       TokenUsage  `json:"usage"`
}
