package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderCustom LLMProvider = "custom"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOllamaEndpoint = "http://localhost:11434"

	maxErrorBody = 512
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMClient communicates with a hosted or local language model.
type LLMClient struct {
	provider LLMProvider
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// CheckConfig reports a *types.ConfigError when the provider cannot be
// reached with the given settings, such as a missing API key.
func CheckConfig(cfg *config.AIConfig) error {
	switch LLMProvider(cfg.Provider) {
	case ProviderGemini, ProviderOpenAI:
		if cfg.APIKey == "" {
			return &types.ConfigError{Key: "ai.api_key", Err: types.ErrMissingCredential}
		}
	case ProviderCustom:
		if cfg.Endpoint == "" {
			return &types.ConfigError{Key: "ai.endpoint", Err: errors.New("required for custom provider")}
		}
	case ProviderOllama:
	default:
		return &types.ConfigError{Key: "ai.provider", Err: fmt.Errorf("unsupported provider %q", cfg.Provider)}
	}
	return nil
}

// NewLLMClient creates a client for cfg.Provider.
func NewLLMClient(cfg *config.AIConfig, logger *slog.Logger) *LLMClient {
	c := &LLMClient{
		provider: LLMProvider(cfg.Provider),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With("component", "llm_client", "provider", cfg.Provider),
	}
	if c.endpoint == "" {
		switch c.provider {
		case ProviderGemini:
			c.endpoint = defaultGeminiEndpoint
		case ProviderOpenAI:
			c.endpoint = defaultOpenAIEndpoint
		case ProviderOllama:
			c.endpoint = defaultOllamaEndpoint
		}
	}
	return c
}

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.model }

// Generate sends a prompt to the LLM and returns the response text.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	switch c.provider {
	case ProviderGemini:
		return c.generateGemini(ctx, prompt)
	case ProviderOllama:
		return c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		return c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}
}

func (c *LLMClient) generateGemini(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := c.postJSON(ctx, url, headers, payload, &result); err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if len(result.Candidates) == 0 {
		if reason := result.PromptFeedback.BlockReason; reason != "" {
			return "", fmt.Errorf("gemini blocked prompt: %s", reason)
		}
		return "", types.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, c.endpoint+"/api/generate", nil, payload, &result); err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.postJSON(ctx, c.endpoint+"/chat/completions", headers, payload, &result); err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.model,
	}
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	body, err := c.post(ctx, c.endpoint, headers, payload)
	if err != nil {
		return "", fmt.Errorf("custom request: %w", err)
	}
	return string(body), nil
}

func (c *LLMClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := c.post(ctx, url, headers, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *LLMClient) post(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(snippet)),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
