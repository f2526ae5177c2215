// Package services – SummaryService
//
// This file implements SummaryService, the multi-provider LLM summarizer
// that turns a window of stored posts into a newsletter briefing. OpenAI and
// LM Studio speak the same chat-completions dialect; Anthropic needs a thin
// adapter around its Messages API. All providers go through one shared,
// injected HTTP client so connection pooling and shutdown stay in the hands
// of the composition root.
//
// Observability: Summarize is OpenTelemetry-instrumented; spans carry the
// provider name and the number of posts summarized.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
)

// SummaryService generates newsletter text from stored posts using the
// tenant-selected LLM provider.
type SummaryService struct {
	// Client is the shared HTTP client used for every provider call. It is
	// expected to carry the request timeout.
	Client *http.Client

	// Cfg holds provider credentials and generation knobs.
	Cfg config.LLMConfig

	// Prompts resolves preset names and custom instructions into the system
	// prompt. Nil falls back to the built-in presets.
	Prompts *Prompts

	// anthropicURL is overridable in tests; empty means the public API.
	anthropicURL string
}

// NewSummaryService builds a SummaryService. A nil client gets a private one
// carrying the configured request timeout; a nil prompts table gets the
// built-in presets.
func NewSummaryService(client *http.Client, cfg config.LLMConfig, prompts *Prompts) *SummaryService {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &SummaryService{Client: client, Cfg: cfg, Prompts: prompts}
}

// Summarize renders the posts into the newsletter prompt and asks the named
// provider for the digest text.
//
// Semantics:
//   - posts must be non-empty; otherwise ErrEmptyBatch.
//   - provider is one of openai | lmstudio | anthropic; anything else is an
//     error (settings validation normally prevents it).
//   - A non-empty custom prompt overrides the preset.
//
// Any transport, status, or empty-response failure is returned as a plain
// error; the pipeline records it as a summary failure.
func (s *SummaryService) Summarize(ctx context.Context, provider string, posts []domain.StoredPost, preset, custom string) (string, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Summarize",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("posts.count", len(posts)),
		),
	)
	defer span.End()

	if len(posts) == 0 {
		return "", ErrEmptyBatch
	}

	prompts := s.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	system := prompts.System(preset, custom)
	user := buildUserPrompt(posts)

	switch provider {
	case domain.ProviderOpenAI:
		return s.callChatCompletions(ctx, s.Cfg.OpenAIBaseURL, s.Cfg.OpenAIKey, s.Cfg.OpenAIModel, system, user)
	case domain.ProviderLMStudio:
		return s.callChatCompletions(ctx, s.Cfg.LMStudioBaseURL, "", s.Cfg.LMStudioModel, system, user)
	case domain.ProviderAnthropic:
		return s.callAnthropic(ctx, system, user)
	default:
		return "", fmt.Errorf("unknown llm provider %q", provider)
	}
}

// chatCompletionsURL joins base with the chat-completions path. LM Studio
// base URLs conventionally already end in /v1, so the naive join would
// produce /v1/v1/; collapse that case.
func chatCompletionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	url := base + "/v1/chat/completions"
	if strings.Contains(url, "/v1/v1/") {
		url = base + "/chat/completions"
	}
	return url
}

// callChatCompletions drives an OpenAI-compatible chat completions endpoint.
// An empty apiKey skips the Authorization header (LM Studio ignores auth).
func (s *SummaryService) callChatCompletions(ctx context.Context, base, apiKey, model, system, user string) (string, error) {
	payload := map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": s.Cfg.Temperature,
		"max_tokens":  s.Cfg.MaxTokens,
		"stream":      false,
	}
	if model != "" {
		payload["model"] = model
	}

	body, err := s.post(ctx, chatCompletionsURL(base), payload, func(h http.Header) {
		if apiKey != "" {
			h.Set("Authorization", "Bearer "+apiKey)
		}
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("llm returned empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// callAnthropic drives the Anthropic Messages API, which takes the system
// prompt as a top-level field rather than a message.
func (s *SummaryService) callAnthropic(ctx context.Context, system, user string) (string, error) {
	url := s.anthropicURL
	if url == "" {
		url = anthropicMessagesURL
	}
	payload := map[string]any{
		"model":      s.Cfg.AnthropicModel,
		"max_tokens": s.Cfg.MaxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}

	body, err := s.post(ctx, url, payload, func(h http.Header) {
		h.Set("x-api-key", s.Cfg.AnthropicKey)
		h.Set("anthropic-version", anthropicVersion)
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(out.Content) == 0 || out.Content[0].Text == "" {
		return "", fmt.Errorf("llm returned empty response")
	}
	return out.Content[0].Text, nil
}

// post sends one JSON request and returns the raw response body. Non-2xx
// statuses become "llm status <code>" errors so pipeline run records stay
// short regardless of how verbose the provider's error body is.
func (s *SummaryService) post(ctx context.Context, url string, payload any, decorate func(http.Header)) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req.Header)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm status %d", resp.StatusCode)
	}
	return body, nil
}
