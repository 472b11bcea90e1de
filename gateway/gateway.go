// gateway/gateway.go
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/gollamachat/config"
	"go.uber.org/zap"
)

// Gateway turns a conversation context and a question into an answer.
//
// Complete may block for as long as the backend takes; callers run it off
// the interactive goroutine.
type Gateway interface {
	Complete(ctx context.Context, history, question string) (string, error)
}

// BackendError reports that the model host was unreachable or answered with
// an error or an unreadable body.
type BackendError struct {
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

const promptTemplate = "\nAnswer the question below.\n\n" +
	"Here is the conversation history: {context}\n\n" +
	"Question: {question}\n\n" +
	"Answer: \n"

// BuildPrompt renders the prompt sent to completion-style backends.
func BuildPrompt(history, question string) string {
	return strings.NewReplacer("{context}", history, "{question}", question).Replace(promptTemplate)
}

// New returns the gateway matching host.Type.
func New(host config.Host, model string, timeout time.Duration, logger *zap.Logger) (Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("host", host.Name), zap.String("model", model))

	switch host.Type {
	case "", "ollama":
		return NewOllamaGateway(host.URL, model, timeout, logger), nil
	case "lmstudio":
		return NewOpenAIGateway(host.URL, model, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported host type %q", host.Type)
	}
}

// newHTTPClient returns a client with keep-alives for repeated calls to the
// same host. Request deadlines come from the caller's context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}
}

// withTimeout applies timeout to ctx when it is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
