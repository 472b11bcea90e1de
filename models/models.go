// models/models.go
package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/gollamachat/config"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by hosts whose API has no equivalent for an operation.
var ErrUnsupported = errors.New("operation not supported by this host")

// Model is one model installed on a host.
type Model struct {
	Name   string
	Loaded bool
}

// LLMHost defines the maintenance operations available on a model host.
type LLMHost interface {
	PullModel(ctx context.Context, model string) error
	DeleteModel(ctx context.Context, model string) error
	ListModels(ctx context.Context) ([]Model, error)
	UnloadModel(ctx context.Context, model string) error
	GetName() string
	GetType() string
}

// OllamaHost is an implementation of LLMHost for Ollama
type OllamaHost struct {
	Name   string
	URL    string
	client *http.Client
	logger *zap.Logger
}

// LMStudioHost is an implementation of LLMHost for LM Studio
type LMStudioHost struct {
	Name   string
	URL    string
	client *http.Client
	logger *zap.Logger
}

// NewHost builds the LLMHost described by the configured host.
func NewHost(h config.Host, logger *zap.Logger) (LLMHost, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: 30 * time.Minute}
	url := strings.TrimRight(h.URL, "/")
	switch h.Type {
	case "ollama":
		return &OllamaHost{Name: h.Name, URL: url, client: client, logger: logger}, nil
	case "lmstudio":
		return &LMStudioHost{Name: h.Name, URL: url, client: client, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown host type: %s", h.Type)
	}
}

func (h *OllamaHost) GetName() string { return h.Name }

func (h *OllamaHost) GetType() string { return "ollama" }

func (h *LMStudioHost) GetName() string { return h.Name }

func (h *LMStudioHost) GetType() string { return "lmstudio" }

// do sends a JSON request and fails on any non-200 status.
func do(ctx context.Context, client *http.Client, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned non-200 status: %s. Body: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("error parsing response: %w", err)
		}
	}
	return nil
}

// PullModel downloads a model and waits for the pull to finish.
func (h *OllamaHost) PullModel(ctx context.Context, model string) error {
	h.logger.Info("pulling model", zap.String("model", model), zap.String("host", h.Name))
	payload := map[string]any{"name": model, "stream": false}
	if err := do(ctx, h.client, http.MethodPost, h.URL+"/api/pull", payload, nil); err != nil {
		return fmt.Errorf("error pulling model %s on %s: %w", model, h.Name, err)
	}
	return nil
}

func (h *LMStudioHost) PullModel(context.Context, string) error { return ErrUnsupported }

// DeleteModel removes an installed model.
func (h *OllamaHost) DeleteModel(ctx context.Context, model string) error {
	h.logger.Info("deleting model", zap.String("model", model), zap.String("host", h.Name))
	if err := do(ctx, h.client, http.MethodDelete, h.URL+"/api/delete", map[string]string{"model": model}, nil); err != nil {
		return fmt.Errorf("error deleting model %s on %s: %w", model, h.Name, err)
	}
	return nil
}

func (h *LMStudioHost) DeleteModel(context.Context, string) error { return ErrUnsupported }

// UnloadModel evicts a model from memory by asking for keep_alive 0.
func (h *OllamaHost) UnloadModel(ctx context.Context, model string) error {
	h.logger.Info("unloading model", zap.String("model", model), zap.String("host", h.Name))
	payload := map[string]any{"model": model, "keep_alive": 0}
	if err := do(ctx, h.client, http.MethodPost, h.URL+"/api/generate", payload, nil); err != nil {
		return fmt.Errorf("error unloading model %s on %s: %w", model, h.Name, err)
	}
	return nil
}

func (h *LMStudioHost) UnloadModel(context.Context, string) error { return ErrUnsupported }

// ListModels returns the installed models, each flagged when it is loaded in memory.
func (h *OllamaHost) ListModels(ctx context.Context) ([]Model, error) {
	running, err := h.getRunningModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get running models: %w", err)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := do(ctx, h.client, http.MethodGet, h.URL+"/api/tags", nil, &tagsResp); err != nil {
		return nil, fmt.Errorf("could not list models: Ollama is not accessible on %s: %w", h.Name, err)
	}

	models := make([]Model, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		_, loaded := running[m.Name]
		models = append(models, Model{Name: m.Name, Loaded: loaded})
	}
	return models, nil
}

func (h *LMStudioHost) ListModels(ctx context.Context) ([]Model, error) {
	var modelsResp struct {
		Data []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"data"`
	}
	if err := do(ctx, h.client, http.MethodGet, h.URL+"/api/v0/models", nil, &modelsResp); err != nil {
		return nil, fmt.Errorf("could not list models: LM Studio is not accessible on %s: %w", h.Name, err)
	}

	models := make([]Model, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, Model{Name: m.ID, Loaded: m.State == "loaded"})
	}
	return models, nil
}

// getRunningModels gets the models currently loaded in memory.
func (h *OllamaHost) getRunningModels(ctx context.Context) (map[string]struct{}, error) {
	var psResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := do(ctx, h.client, http.MethodGet, h.URL+"/api/ps", nil, &psResp); err != nil {
		return nil, err
	}
	running := make(map[string]struct{}, len(psResp.Models))
	for _, m := range psResp.Models {
		running[m.Name] = struct{}{}
	}
	return running, nil
}

// Catalog lists the host's models with loaded ones first, each group sorted by name.
func Catalog(ctx context.Context, h LLMHost) ([]Model, error) {
	models, err := h.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Loaded != models[j].Loaded {
			return models[i].Loaded
		}
		return models[i].Name < models[j].Name
	})
	return models, nil
}

var (
	nodeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	modelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	loadedModelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// List prints the host's models, marking loaded ones and the configured chat model.
func List(ctx context.Context, w io.Writer, h LLMHost, chatModel string) error {
	models, err := Catalog(ctx, h)
	if err != nil {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return err
	}

	fmt.Fprintln(w, nodeStyle.Render(fmt.Sprintf("%s:", h.GetName())))
	if len(models) == 0 {
		fmt.Fprintln(w, "  >>> no models installed")
	}
	for _, m := range models {
		label := m.Name
		if m.Name == chatModel {
			label += " (CHAT MODEL)"
		}
		if m.Loaded {
			fmt.Fprintln(w, "  >>> "+loadedModelStyle.Render(label+" (CURRENTLY LOADED)"))
		} else {
			fmt.Fprintln(w, "  >>> "+modelStyle.Render(label))
		}
	}
	return nil
}

// Pull downloads each named model in turn.
func Pull(ctx context.Context, w io.Writer, h LLMHost, names ...string) error {
	var errs []error
	for _, name := range names {
		fmt.Fprintf(w, "  -> Pulling model: %s on %s\n", name, h.GetName())
		if err := h.PullModel(ctx, name); err != nil {
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("     %v", err)))
			errs = append(errs, err)
		}
	}
	fmt.Fprintln(w, "All model pull commands have finished.")
	return errors.Join(errs...)
}

// Delete removes each named model in turn.
func Delete(ctx context.Context, w io.Writer, h LLMHost, names ...string) error {
	var errs []error
	for _, name := range names {
		fmt.Fprintf(w, "  -> Deleting model: %s on %s\n", name, h.GetName())
		if err := h.DeleteModel(ctx, name); err != nil {
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("     %v", err)))
			errs = append(errs, err)
		}
	}
	fmt.Fprintln(w, "All model cleanup commands have finished.")
	return errors.Join(errs...)
}

// Unload evicts every loaded model from memory.
func Unload(ctx context.Context, w io.Writer, h LLMHost) error {
	models, err := h.ListModels(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range models {
		if !m.Loaded {
			continue
		}
		fmt.Fprintf(w, "  -> Unloading model: %s on %s\n", m.Name, h.GetName())
		if err := h.UnloadModel(ctx, m.Name); err != nil {
			errs = append(errs, err)
		}
	}
	fmt.Fprintln(w, "All model unload commands have finished.")
	return errors.Join(errs...)
}

// Sync makes sure the chat model is installed, pulling it when missing.
func Sync(ctx context.Context, w io.Writer, h LLMHost, chatModel string) error {
	if chatModel == "" {
		return errors.New("no chat model configured")
	}
	models, err := h.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == chatModel || m.Name == chatModel+":latest" {
			fmt.Fprintf(w, "  -> Keeping model: %s on %s\n", m.Name, h.GetName())
			return nil
		}
	}
	return Pull(ctx, w, h, chatModel)
}
