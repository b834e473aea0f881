package model

import "fmt"

// PageDocument is a single page of source text produced by the loader.
type PageDocument struct {
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
}

// DocumentChunk is a bounded span of a source page stored alongside its
// embedding for similarity search. Chunks are immutable once created.
type DocumentChunk struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	SourceFile  string `json:"source_file"`
	Page        int    `json:"page"`
	StartOffset int    `json:"start_offset"`
}

// ChunkID builds the deterministic chunk identifier. Re-ingesting an
// unchanged corpus produces the same ids, so index writes stay idempotent.
func ChunkID(sourceFile string, page int, startOffset int) string {
	return fmt.Sprintf("%s:%d:%d", sourceFile, page, startOffset)
}

// ScoredChunk pairs a chunk with its similarity score for ranking.
// The score is transient and never persisted.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float32       `json:"score"`
}
