// gateway/openai.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIGateway completes prompts with an OpenAI-compatible server such as
// LM Studio. The whole prompt, history included, goes in one user message.
type OpenAIGateway struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAIGateway returns a gateway for the server at baseURL.
func NewOpenAIGateway(baseURL, model string, timeout time.Duration, logger *zap.Logger) *OpenAIGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

// Complete posts to /v1/chat/completions and returns the first choice, trimmed.
func (g *OpenAIGateway) Complete(ctx context.Context, history, question string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(chatCompletionRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: BuildPrompt(history, question)}},
	})
	if err != nil {
		return "", &BackendError{Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &BackendError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("completion failed", zap.Error(err))
		return "", &BackendError{Message: fmt.Sprintf("could not reach LM Studio at %s", g.baseURL), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Message: "failed to read response", Cause: err}
	}

	var out chatCompletionResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &BackendError{Message: fmt.Sprintf("API returned non-200 status: %s. Body: %s", resp.Status, msg)}
	}
	if decodeErr != nil {
		return "", &BackendError{Message: "failed to decode response", Cause: decodeErr}
	}
	if len(out.Choices) == 0 {
		return "", &BackendError{Message: "response has no choices"}
	}

	g.logger.Debug("completion finished", zap.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
