package rag

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/ai"
	"github.com/carepoint/medassist/internal/model"
	"github.com/carepoint/medassist/internal/vectorindex"
)

// DefaultTopK is how many chunks a question is grounded on by default.
const DefaultTopK = 3

// Retriever embeds a query and runs it against the vector index.
//
// It deliberately has no error path: an unreachable index or failed embed
// means "no grounding context", which the answer generator turns into the
// canned refusal. Scores are used for ranking only and are dropped before
// returning; no confidence threshold is applied.
type Retriever struct {
	embedder ai.IEmbedder
	index    vectorindex.Index
}

func NewRetriever(embedder ai.IEmbedder, index vectorindex.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns the best-matching chunks for the query, best first,
// never more than topK and never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []model.DocumentChunk {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	if topK <= 0 {
		topK = DefaultTopK
	}
	if r.embedder == nil || r.index == nil {
		logger.Warn("retrieval unavailable: index or embedder not configured")
		return nil
	}

	vector, err := r.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Warn("failed to embed query", zap.Error(err))
		return nil
	}
	matches, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		logger.Warn("vector index query failed", zap.Error(err))
		return nil
	}
	if len(matches) == 0 {
		logger.Warn("no matching medical documents found")
		return nil
	}

	chunks := make([]model.DocumentChunk, 0, len(matches))
	for _, match := range matches {
		logger.Debug("matched chunk",
			zap.String("chunk_id", match.Chunk.ID),
			zap.Float32("score", match.Score),
		)
		chunks = append(chunks, match.Chunk)
	}
	logger.Info("retrieved medical context", zap.Int("chunks", len(chunks)))
	return chunks
}
