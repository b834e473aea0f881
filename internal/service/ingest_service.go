package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/ai"
	"github.com/carepoint/medassist/internal/model"
	"github.com/carepoint/medassist/internal/rag"
	"github.com/carepoint/medassist/internal/vectorindex"
)

const defaultUpsertBatchSize = 64

// IngestService runs the offline ingestion pipeline: load pages, split
// them into chunks, embed each chunk and upsert it into the vector index.
// It is not meant to run concurrently with itself; the scheduler's
// overlap guard enforces that for the cron path.
type IngestService struct {
	loader    *rag.Loader
	splitter  *rag.Splitter
	manager   *ai.Manager
	index     vectorindex.Index
	batchSize int
}

func NewIngestService(loader *rag.Loader, splitter *rag.Splitter, manager *ai.Manager, index vectorindex.Index, batchSize int) *IngestService {
	if batchSize <= 0 {
		batchSize = defaultUpsertBatchSize
	}
	return &IngestService{
		loader:    loader,
		splitter:  splitter,
		manager:   manager,
		index:     index,
		batchSize: batchSize,
	}
}

// ProcessDocuments loads the corpus and splits it into chunks without
// touching the index. Empty corpus means empty result, not an error.
func (s *IngestService) ProcessDocuments(ctx context.Context) []model.DocumentChunk {
	logger := logutil.GetLogger(ctx)
	docs := s.loader.Load(ctx)
	chunks := s.splitter.Split(docs)
	logger.Info("document processing complete",
		zap.Int("pages", len(docs)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

// Sync embeds every chunk and pushes it into the vector index. A chunk
// whose embedding fails is skipped and logged; an unreachable index is an
// error because ingestion cannot degrade the way queries can.
func (s *IngestService) Sync(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	if s.index == nil {
		return fmt.Errorf("vector index unavailable, cannot ingest")
	}

	chunks := s.ProcessDocuments(ctx)
	if len(chunks) == 0 {
		logger.Info("nothing to ingest")
		return nil
	}

	var batch []vectorindex.Entry
	var skipped, stored int
	for _, chunk := range chunks {
		vector, err := s.manager.Embed(ctx, chunk.Text, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("failed to embed chunk, skipping",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}
		batch = append(batch, vectorindex.Entry{
			ID:     chunk.ID,
			Vector: vector,
			Chunk:  chunk,
		})
		if len(batch) >= s.batchSize {
			if err := s.index.Upsert(ctx, batch); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			stored += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		stored += len(batch)
	}

	logger.Info("ingestion sync complete",
		zap.Int("stored", stored),
		zap.Int("skipped", skipped),
	)
	return nil
}

// Name and Run make the service schedulable as a cron job.
func (s *IngestService) Name() string {
	return "document-ingest"
}

func (s *IngestService) Run(ctx context.Context) error {
	return s.Sync(ctx)
}
