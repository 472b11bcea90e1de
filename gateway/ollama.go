// gateway/ollama.go
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

// generateRequest is the body of POST /api/generate.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the non-streaming reply of /api/generate.
type generateResponse struct {
	Model              string `json:"model"`
	Response           string `json:"response"`
	Done               bool   `json:"done"`
	Error              string `json:"error,omitempty"`
	TotalDuration      int64  `json:"total_duration"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalCount          int    `json:"eval_count"`
	EvalDuration       int64  `json:"eval_duration"`
	LoadDuration       int64  `json:"load_duration"`
	PromptEvalDuration int64  `json:"prompt_eval_duration"`
}

// OllamaGateway completes prompts with an Ollama server.
type OllamaGateway struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// NewOllamaGateway returns a gateway for the Ollama server at baseURL.
func NewOllamaGateway(baseURL, model string, timeout time.Duration, logger *zap.Logger) *OllamaGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

// Complete sends the rendered prompt to /api/generate and returns the trimmed answer.
func (g *OllamaGateway) Complete(ctx context.Context, history, question string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.generate(ctx, BuildPrompt(history, question))
	if err != nil {
		g.logger.Warn("completion failed", zap.Error(err))
		return "", err
	}
	g.logger.Debug("completion finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_eval_count", resp.PromptEvalCount),
		zap.Int("eval_count", resp.EvalCount),
		zap.Duration("total_duration", time.Duration(resp.TotalDuration)),
	)
	return strings.TrimSpace(resp.Response), nil
}

// WarmUp asks Ollama to load the model so the first question does not pay
// for it. An empty prompt loads the model without generating.
func (g *OllamaGateway) WarmUp(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	_, err := g.generate(ctx, "")
	return err
}

func (g *OllamaGateway) generate(ctx context.Context, prompt string) (*generateResponse, error) {
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, &BackendError{Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &BackendError{Message: fmt.Sprintf("could not reach Ollama at %s", g.baseURL), Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Message: "failed to read response", Cause: err}
	}

	var out generateResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, &BackendError{Message: fmt.Sprintf("API returned non-200 status: %s. Body: %s", resp.Status, msg)}
	}
	if decodeErr != nil {
		return nil, &BackendError{Message: "failed to decode response", Cause: decodeErr}
	}
	if out.Error != "" {
		return nil, &BackendError{Message: out.Error}
	}
	return &out, nil
}
