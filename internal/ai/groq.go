package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Groq speaks the OpenAI chat wire format on its own base URL. It hosts
// generation models only, so no embed provider is registered for it.
const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

type groqConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type groqProvider struct {
	apiKey  string
	baseURL string
}

func (p *groqProvider) Name() string {
	return "groq"
}

func (p *groqProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	reqBody := openAIChatRequest{
		Model:       model,
		Messages:    []openAIChatMsg{{Role: "user", Content: prompt}},
		Temperature: genTemperature,
		MaxTokens:   genMaxTokens,
		Stream:      false,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("groq request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("groq response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func createGroqFactory(args interface{}) (IAIProvider, error) {
	cfg := &groqConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	provider := &groqProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
	}
	return provider, nil
}

func init() {
	Register("groq", createGroqFactory)
}
