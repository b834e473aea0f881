package vectorindex

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/medassist/internal/model"
)

// qdrantIndex is a minimal REST client to a Qdrant collection configured for
// cosine distance, so its scores already follow the package convention.
type qdrantIndex struct {
	url        string
	apiKey     string
	collection string
	model      string
	client     *http.Client
}

type qdrantConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	TimeoutSec int    `json:"timeout_sec"`
}

func init() {
	Register("qdrant", createQdrantIndex)
}

func createQdrantIndex(args interface{}, embedModel string) (Index, error) {
	cfg := &qdrantConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant dimension is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "medical_chunks"
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	idx := &qdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		model:      embedModel,
		client:     &http.Client{Timeout: timeout},
	}
	if err := idx.ensureCollection(cfg.Dimension); err != nil {
		return nil, fmt.Errorf("init qdrant collection: %w", err)
	}
	return idx, nil
}

func (q *qdrantIndex) ensureCollection(dimension int) error {
	// Qdrant returns 200 when the collection already exists with the same
	// schema, so this is safe to run on every start.
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.putJSON(fmt.Sprintf("%s/collections/%s", q.url, q.collection), body)
}

func (q *qdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		points = append(points, map[string]interface{}{
			// Qdrant point ids must be UUIDs; derive one from the chunk id
			// so re-ingestion stays idempotent.
			"id":     pointID(entry.ID),
			"vector": entry.Vector,
			"payload": map[string]interface{}{
				"chunk_id":     entry.ID,
				"model_name":   q.model,
				"text":         entry.Chunk.Text,
				"source_file":  entry.Chunk.SourceFile,
				"page":         entry.Chunk.Page,
				"start_offset": entry.Chunk.StartOffset,
			},
		})
	}
	body := map[string]interface{}{"points": points}
	return q.putJSONCtx(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection), body)
}

func (q *qdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       q.modelFilter(),
	}
	var resp struct {
		Result []struct {
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := model.DocumentChunk{}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["source_file"].(string); ok {
			chunk.SourceFile = v
		}
		if v, ok := r.Payload["page"].(float64); ok {
			chunk.Page = int(v)
		}
		if v, ok := r.Payload["start_offset"].(float64); ok {
			chunk.StartOffset = int(v)
		}
		matches = append(matches, Match{Chunk: chunk, Score: float32(r.Score)})
	}
	return matches, nil
}

func (q *qdrantIndex) Count(ctx context.Context) (int64, error) {
	req := map[string]interface{}{
		"filter": q.modelFilter(),
		"exact":  true,
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *qdrantIndex) modelFilter() map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "model_name", "match": map[string]interface{}{"value": q.model}},
		},
	}
}

func pointID(chunkID string) string {
	hash := sha256.Sum256([]byte(chunkID))
	return uuid.NewSHA1(uuid.NameSpaceOID, hash[:]).String()
}

func (q *qdrantIndex) putJSON(url string, body interface{}) error {
	return q.putJSONCtx(context.Background(), url, body)
}

func (q *qdrantIndex) putJSONCtx(ctx context.Context, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return q.do(req, nil)
}

func (q *qdrantIndex) postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return q.do(req, out)
}

func (q *qdrantIndex) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("qdrant %s %s failed: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
