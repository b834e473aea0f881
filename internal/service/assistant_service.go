package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/ai"
	"github.com/carepoint/medassist/internal/model"
	"github.com/carepoint/medassist/internal/rag"
)

// ErrorAnswer is the fixed user-facing reply when the LLM call itself
// fails. Nothing below this layer ever reaches the caller as an error.
const ErrorAnswer = "The medical assistant is temporarily unavailable. Please try again later."

// EmptyQueryAnswer is returned for a blank question.
const EmptyQueryAnswer = "I am ready to assist. Please enter your query."

// RosterProvider supplies the doctor roster from the external doctor store.
type RosterProvider interface {
	Roster(ctx context.Context) ([]model.RosterEntry, error)
}

// AssistantService is the request-facing surface of the assistant: grounded
// question answering and symptom triage. It is stateless per request; each
// call is independent and no conversation memory is kept.
type AssistantService struct {
	manager   *ai.Manager
	retriever *rag.Retriever
	roster    RosterProvider
	cache     *expirable.LRU[string, string]
	topK      int
}

func NewAssistantService(manager *ai.Manager, retriever *rag.Retriever, roster RosterProvider, topK int) *AssistantService {
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	return &AssistantService{
		manager:   manager,
		retriever: retriever,
		roster:    roster,
		cache:     expirable.NewLRU[string, string](10000, nil, 2*time.Hour),
		topK:      topK,
	}
}

// Answer retrieves grounding context for the question and generates a reply.
// It always returns a usable string, never an error.
func (s *AssistantService) Answer(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return EmptyQueryAnswer
	}
	cacheKey := s.cacheKey("answer", question)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached
	}

	chunks := s.retriever.Retrieve(ctx, question, s.topK)
	answer := s.Generate(ctx, question, chunks)
	if answer != ErrorAnswer {
		s.cache.Add(cacheKey, answer)
	}
	return answer
}

// Generate answers the question strictly from the supplied chunks. An empty
// chunk list yields the canned refusal via the prompt rules; an LLM failure
// yields ErrorAnswer with the cause logged.
func (s *AssistantService) Generate(ctx context.Context, question string, chunks []model.DocumentChunk) string {
	logger := logutil.GetLogger(ctx).With(zap.String("question", question))
	answer, err := s.manager.Answer(ctx, question, chunks)
	if err != nil {
		logger.Error("answer generation failed", zap.Error(err))
		return ErrorAnswer
	}
	logger.Info("answer generated", zap.Int("context_chunks", len(chunks)))
	return answer
}

// Recommend maps symptoms to a specialization or doctor name from the
// roster. For a non-empty roster the reply is always a non-empty,
// best-effort string; the appointment glue owns any further fallback.
func (s *AssistantService) Recommend(ctx context.Context, symptoms string, roster []model.RosterEntry) string {
	logger := logutil.GetLogger(ctx).With(zap.String("symptoms", symptoms))
	if len(roster) == 0 {
		logger.Warn("recommend called with empty roster")
		return ""
	}
	result, err := s.manager.Recommend(ctx, strings.TrimSpace(symptoms), roster)
	if err != nil || strings.TrimSpace(result) == "" {
		logger.Warn("triage call failed, falling back to first roster specialization", zap.Error(err))
		return roster[0].Specialization
	}
	cleaned := strings.Trim(strings.TrimSpace(result), `"'.`)
	if cleaned == "" {
		return roster[0].Specialization
	}
	logger.Info("triage result", zap.String("recommendation", cleaned))
	return cleaned
}

// RecommendFromStore runs Recommend against the live doctor roster.
func (s *AssistantService) RecommendFromStore(ctx context.Context, symptoms string) string {
	logger := logutil.GetLogger(ctx)
	if s.roster == nil {
		logger.Warn("roster provider not configured")
		return ""
	}
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		logger.Error("failed to load doctor roster", zap.Error(err))
		return ""
	}
	return s.Recommend(ctx, symptoms, roster)
}

func (s *AssistantService) cacheKey(feature, text string) string {
	hash := sha256.Sum256([]byte(text))
	return feature + ":" + hex.EncodeToString(hash[:])
}
