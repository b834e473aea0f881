package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carepoint/medassist/internal/ai"
	"github.com/carepoint/medassist/internal/model"
	"github.com/carepoint/medassist/internal/rag"
	"github.com/carepoint/medassist/internal/vectorindex"
)

// keywordEmbedder is a deterministic embedder for tests: each dimension
// counts one vocabulary word, so related texts get similar vectors.
type keywordEmbedder struct {
	vocab []string
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vocab: []string{"paracetamol", "dosage", "10mg", "fever", "visiting"}}
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	lower := strings.ToLower(text)
	vector := make([]float32, len(k.vocab))
	for i, word := range k.vocab {
		vector[i] = float32(strings.Count(lower, word))
	}
	return vector, nil
}

func (k *keywordEmbedder) ModelName() string { return "keyword-test" }

// groundedGenerator mimics the answering model's grounding rule: it only
// answers when the dosage fact actually appears in the prompt context.
type groundedGenerator struct {
	calls int
}

func (g *groundedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if strings.Contains(prompt, "SOURCE [") && strings.Contains(prompt, "10mg") {
		return "The recommended dosage is 10mg per kg.", nil
	}
	return ai.RefusalAnswer, nil
}

type staticGenerator struct {
	reply string
	calls int
}

func (g *staticGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.reply, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("service unavailable")
}

type rosterStub struct {
	roster []model.RosterEntry
	err    error
}

func (r *rosterStub) Roster(ctx context.Context) ([]model.RosterEntry, error) {
	return r.roster, r.err
}

func seedIndex(t *testing.T, index vectorindex.Index, embedder ai.IEmbedder, chunks ...model.DocumentChunk) {
	t.Helper()
	ctx := context.Background()
	entries := make([]vectorindex.Entry, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := embedder.Embed(ctx, chunk.Text, ai.TaskRetrievalDocument)
		require.NoError(t, err)
		entries = append(entries, vectorindex.Entry{ID: chunk.ID, Vector: vector, Chunk: chunk})
	}
	require.NoError(t, index.Upsert(ctx, entries))
}

func newAssistant(answerer ai.IGenerator, triage ai.IGenerator, embedder ai.IEmbedder, index vectorindex.Index, roster RosterProvider) *AssistantService {
	manager := ai.NewManager(answerer, triage, embedder, ai.ManagerConfig{TimeoutSec: 30})
	retriever := rag.NewRetriever(manager.Embedder(), index)
	return NewAssistantService(manager, retriever, roster, 3)
}

func TestAnswerGroundedOnIngestedFact(t *testing.T) {
	embedder := newKeywordEmbedder()
	index := vectorindex.NewMemory(embedder.ModelName())
	seedIndex(t, index, embedder,
		model.DocumentChunk{ID: "d1", Text: "Paracetamol dosage for adults is 10mg per kg.", SourceFile: "formulary.pdf", Page: 2},
		model.DocumentChunk{ID: "d2", Text: "Visiting hours are 9am to 5pm.", SourceFile: "policy.md", Page: 1},
	)

	svc := newAssistant(&groundedGenerator{}, nil, embedder, index, nil)
	answer := svc.Answer(context.Background(), "What is the paracetamol dosage?")
	require.Contains(t, answer, "10mg")
}

func TestAnswerRefusesWithoutGrounding(t *testing.T) {
	embedder := newKeywordEmbedder()
	index := vectorindex.NewMemory(embedder.ModelName())

	svc := newAssistant(&groundedGenerator{}, nil, embedder, index, nil)
	answer := svc.Answer(context.Background(), "What is the paracetamol dosage?")
	require.Equal(t, ai.RefusalAnswer, answer)
}

func TestAnswerCachesRepeatedQuestions(t *testing.T) {
	embedder := newKeywordEmbedder()
	index := vectorindex.NewMemory(embedder.ModelName())
	gen := &staticGenerator{reply: "Answer text."}

	svc := newAssistant(gen, nil, embedder, index, nil)
	first := svc.Answer(context.Background(), "What about fever?")
	second := svc.Answer(context.Background(), "What about fever?")
	require.Equal(t, first, second)
	require.Equal(t, 1, gen.calls)
}

func TestAnswerErrorPathIsFixedStringAndUncached(t *testing.T) {
	embedder := newKeywordEmbedder()
	index := vectorindex.NewMemory(embedder.ModelName())

	svc := newAssistant(failingGenerator{}, nil, embedder, index, nil)
	require.Equal(t, ErrorAnswer, svc.Answer(context.Background(), "fever?"))

	// The failure reply must not poison the cache.
	_, cached := svc.cache.Get(svc.cacheKey("answer", "fever?"))
	require.False(t, cached)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newAssistant(&staticGenerator{reply: "x"}, nil, newKeywordEmbedder(), nil, nil)
	require.Equal(t, EmptyQueryAnswer, svc.Answer(context.Background(), "   "))
}

func TestRecommendPicksSpecializationFromRoster(t *testing.T) {
	roster := []model.RosterEntry{
		{Name: "Dr. Rahman", Specialization: "Cardiologist"},
		{Name: "Dr. Akter", Specialization: "Dermatologist"},
	}
	svc := newAssistant(nil, &staticGenerator{reply: `"Cardiologist."`}, nil, nil, &rosterStub{roster: roster})

	result := svc.Recommend(context.Background(), "chest pain and shortness of breath", roster)
	require.Equal(t, "Cardiologist", result)
}

func TestRecommendFallsBackToFirstRosterEntry(t *testing.T) {
	roster := []model.RosterEntry{{Name: "Dr. Rahman", Specialization: "Cardiologist"}}

	svc := newAssistant(nil, failingGenerator{}, nil, nil, nil)
	require.Equal(t, "Cardiologist", svc.Recommend(context.Background(), "headache", roster))

	svc = newAssistant(nil, &staticGenerator{reply: "  "}, nil, nil, nil)
	require.Equal(t, "Cardiologist", svc.Recommend(context.Background(), "headache", roster))
}

func TestRecommendEmptyRoster(t *testing.T) {
	svc := newAssistant(nil, &staticGenerator{reply: "Cardiologist"}, nil, nil, nil)
	require.Empty(t, svc.Recommend(context.Background(), "headache", nil))
}

func TestRecommendFromStore(t *testing.T) {
	roster := []model.RosterEntry{{Name: "Dr. Akter", Specialization: "Dermatologist"}}
	svc := newAssistant(nil, &staticGenerator{reply: "Dermatologist"}, nil, nil, &rosterStub{roster: roster})
	require.Equal(t, "Dermatologist", svc.RecommendFromStore(context.Background(), "skin rash"))

	svc = newAssistant(nil, &staticGenerator{reply: "Dermatologist"}, nil, nil, &rosterStub{err: fmt.Errorf("db down")})
	require.Empty(t, svc.RecommendFromStore(context.Background(), "skin rash"))

	svc = newAssistant(nil, &staticGenerator{reply: "Dermatologist"}, nil, nil, nil)
	require.Empty(t, svc.RecommendFromStore(context.Background(), "skin rash"))
}
