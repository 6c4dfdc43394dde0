package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// fallbackAnswer is returned whenever the model endpoint cannot
// produce a usable completion. The adapter never propagates transport
// errors to its callers.
const fallbackAnswer = "LLM unavailable, no analysis produced."

// LLM is the one-shot completion adapter the engine consumes.
type LLM interface {
	// Chat sends one prompt and returns the model's text. On any
	// failure it returns a safe fallback string.
	Chat(ctx context.Context, prompt string) string
}

// OllamaClient talks to a local Ollama instance's chat endpoint.
type OllamaClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Log     zerolog.Logger
}

// NewOllamaClient returns a chat client with a 60s request timeout,
// defaulting the model to gemma3:4b.
func NewOllamaClient(baseURL, model string, log zerolog.Logger) *OllamaClient {
	if model == "" {
		model = "gemma3:4b"
	}
	return &OllamaClient{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
		Log:     log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message  chatMessage   `json:"message"`
	Messages []chatMessage `json:"messages"`
}

func (c *OllamaClient) Chat(ctx context.Context, prompt string) string {
	body, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return fallbackAnswer
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fallbackAnswer
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.Log.Warn().Err(err).Msg("llm request failed")
		return fallbackAnswer
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.Log.Warn().Str("status", resp.Status).Msg("llm returned non-OK status")
		return fallbackAnswer
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.Log.Warn().Err(err).Msg("undecodable llm response")
		return fallbackAnswer
	}
	if parsed.Message.Content != "" {
		return parsed.Message.Content
	}
	if n := len(parsed.Messages); n > 0 {
		return parsed.Messages[n-1].Content
	}
	return fallbackAnswer
}
