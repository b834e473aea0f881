package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/model"
)

// RefusalAnswer is the single canned reply the model is instructed to give
// when the retrieved context does not contain the answer. Tests and the web
// layer match against this exact string.
const RefusalAnswer = "This information is not available in the provided medical records. Please consult a specialist."

type ManagerConfig struct {
	// TimeoutSec bounds every remote LLM/embedding call. Zero disables it.
	TimeoutSec int
}

// Manager owns the prompt construction for the two LLM call shapes
// (grounded answering and roster triage) plus the shared embedder.
type Manager struct {
	answerer IGenerator
	triage   IGenerator
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(answerer IGenerator, triage IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		answerer: answerer,
		triage:   triage,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	res, err := m.embedder.Embed(ctx, text, taskType)
	if err != nil && ctx.Err() == nil {
		logutil.GetLogger(ctx).Warn("embed call failed, retrying once", zap.Error(err))
		res, err = m.embedder.Embed(ctx, text, taskType)
	}
	return res, err
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// Embedder exposes the manager's embedder with its timeout and retry
// behavior attached, for callers that want the IEmbedder shape.
func (m *Manager) Embedder() IEmbedder {
	if m.embedder == nil {
		return nil
	}
	return &managedEmbedder{m: m}
}

type managedEmbedder struct {
	m *Manager
}

func (e *managedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.m.Embed(ctx, text, taskType)
}

func (e *managedEmbedder) ModelName() string {
	return e.m.EmbeddingModelName()
}

// Answer invokes the LLM with the question grounded strictly on the supplied
// chunks. It never invents context: an empty chunk list produces an empty
// CONTEXT section, which the prompt rules turn into the canned refusal.
func (m *Manager) Answer(ctx context.Context, question string, chunks []model.DocumentChunk) (string, error) {
	if m.answerer == nil {
		return "", fmt.Errorf("answerer not configured: %w", ErrUnavailable)
	}
	prompt := BuildAnswerPrompt(question, chunks)
	return m.generateText(ctx, m.answerer, prompt)
}

// Recommend maps free-text symptoms to a specialization or doctor name drawn
// from the supplied roster.
func (m *Manager) Recommend(ctx context.Context, symptoms string, roster []model.RosterEntry) (string, error) {
	if m.triage == nil {
		return "", fmt.Errorf("triage generator not configured: %w", ErrUnavailable)
	}
	prompt := BuildTriagePrompt(symptoms, roster)
	return m.generateText(ctx, m.triage, prompt)
}

// BuildAnswerPrompt labels every chunk with its source file and page so the
// answer stays traceable to a citation.
func BuildAnswerPrompt(question string, chunks []model.DocumentChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("SOURCE [%s, Page %d]:\n%s", chunk.SourceFile, chunk.Page, chunk.Text))
	}
	contextText := strings.Join(parts, "\n\n")
	return fmt.Sprintf(`SYSTEM ROLE:
You are a specialized medical document assistant. Your knowledge is strictly limited to the provided context.

STRICT RULES:
1. ONLY answer using the information found in the PROVIDED CONTEXT.
2. If the answer is NOT present in the context, do not use your own knowledge.
3. In case of missing information, your ONLY response must be exactly:
   "%s"
4. Format the output professionally with headings and bullet points.

CONTEXT:
%s

QUESTION:
%s

STRICT MEDICAL ANSWER:`, RefusalAnswer, contextText, question)
}

func BuildTriagePrompt(symptoms string, roster []model.RosterEntry) string {
	lines := make([]string, 0, len(roster))
	for _, entry := range roster {
		lines = append(lines, fmt.Sprintf("- %s (%s)", entry.Name, entry.Specialization))
	}
	return fmt.Sprintf(`You are a hospital triage assistant.
Given the patient's symptoms, pick the single best match from the doctor roster below.

RULES:
1. Reply with ONLY one specialization from the roster, or a doctor's name if the symptoms clearly point at one doctor.
2. Do not explain. Do not add punctuation around the reply.
3. If nothing matches well, reply with the closest specialization anyway.

ROSTER:
%s

SYMPTOMS:
%s

BEST MATCH:`, strings.Join(lines, "\n"), symptoms)
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	resp, err := gen.Generate(ctx, prompt)
	if err != nil && ctx.Err() == nil {
		// Hosted-service flakiness is the dominant failure mode; one retry
		// within the same deadline covers transient network errors.
		logutil.GetLogger(ctx).Warn("llm call failed, retrying once", zap.Error(err))
		resp, err = gen.Generate(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.TimeoutSec <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(m.cfg.TimeoutSec)*time.Second)
}
