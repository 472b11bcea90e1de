// cli/cli_test.go
package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwiater/gollamachat/config"
	"github.com/mwiater/gollamachat/controller"
	"github.com/mwiater/gollamachat/gateway"
	"github.com/mwiater/gollamachat/models"
	"github.com/mwiater/gollamachat/store"
)

type gatewayFunc func(ctx context.Context, history, question string) (string, error)

func (f gatewayFunc) Complete(ctx context.Context, history, question string) (string, error) {
	return f(ctx, history, question)
}

func testConfig(model string) *config.Config {
	return &config.Config{
		Host:    config.Host{Name: "Test Host", URL: "http://localhost:11434", Type: "ollama"},
		Model:   model,
		Gateway: config.GatewayConfig{RequestTimeout: time.Second},
		Chat:    config.ChatConfig{ExitCommand: "exit", Theme: "dark"},
		History: config.HistoryConfig{Backend: "file"},
	}
}

// newChat returns a model that has finished loading and is in the chat view.
func newChat(t *testing.T, cfg *config.Config, gw gateway.Gateway) (*model, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat_history.json")
	return newChatWithStore(t, cfg, gw, store.NewFileStore(path, nil)), path
}

func newChatWithStore(t *testing.T, cfg *config.Config, gw gateway.Gateway, st store.Store) *model {
	t.Helper()
	m := initialModel(Dependencies{
		Config:     cfg,
		Store:      st,
		NewGateway: func(string) (gateway.Gateway, error) { return gw, nil },
	})
	m.Init()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(chatReadyMsg{})
	if m.state != viewChat {
		t.Fatalf("expected chat view, got %v", m.state)
	}
	return m
}

// collect runs cmd and every command it batches, returning the produced messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func send(t *testing.T, m *model, text string) tea.Cmd {
	t.Helper()
	m.textArea.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func readHistory(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	return string(b)
}

func TestChat_SubmitAndComplete(t *testing.T) {
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(_ context.Context, history, question string) (string, error) {
		return "4", nil
	}))

	cmd := send(t, m, "2+2?")
	if !m.isLoading {
		t.Fatalf("expected loading after sending message")
	}
	if m.textArea.Value() != "" {
		t.Fatalf("expected input to be reset, got %q", m.textArea.Value())
	}
	if !strings.Contains(m.View(), "Typing...") {
		t.Fatalf("expected typing placeholder in view")
	}

	result, ok := find[resultMsg](collect(cmd))
	if !ok {
		t.Fatalf("expected a resultMsg from the submit command")
	}
	m.Update(result)

	if m.isLoading {
		t.Fatalf("expected not loading after the result")
	}
	if got := m.ctrl.Snapshot(); got != "\nUser: 2+2?\nAI: 4" {
		t.Fatalf("unexpected context %q", got)
	}
	if !strings.Contains(readHistory(t, path), `"context": "\nUser: 2+2?\nAI: 4"`) {
		t.Fatalf("unexpected history file: %s", readHistory(t, path))
	}

	out := m.View()
	if !strings.Contains(out, "You:") || !strings.Contains(out, "Bot:") || strings.Contains(out, "Typing...") {
		t.Fatalf("unexpected view output: %s", out)
	}
}

func TestChat_BlankInputIgnored(t *testing.T) {
	calls := 0
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		calls++
		return "x", nil
	}))

	if cmd := send(t, m, "   "); cmd != nil {
		t.Fatalf("expected no command for blank input")
	}
	if len(m.transcript) != 0 || m.isLoading || calls != 0 {
		t.Fatalf("blank input changed state: transcript=%v loading=%v calls=%d", m.transcript, m.isLoading, calls)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no history file, got %v", err)
	}
}

func TestChat_ExitCommandSavesAndQuits(t *testing.T) {
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "hi", nil
	}))
	result, _ := find[resultMsg](collect(send(t, m, "hello")))
	m.Update(result)

	cmd := send(t, m, "EXIT")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !m.quitting || m.ctrl.State() != controller.Terminating {
		t.Fatalf("expected terminating, got %v", m.ctrl.State())
	}
	if !strings.Contains(readHistory(t, path), `\nUser: hello\nAI: hi`) {
		t.Fatalf("history not saved: %s", readHistory(t, path))
	}
	if m.View() != "" {
		t.Fatalf("expected empty view when quitting")
	}
}

func TestChat_EscSavesAndQuits(t *testing.T) {
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "", nil
	}))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !strings.Contains(readHistory(t, path), `"context": ""`) {
		t.Fatalf("expected empty context saved, got %s", readHistory(t, path))
	}
}

func TestChat_BusyWhileAwaiting(t *testing.T) {
	m, _ := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "a", nil
	}))
	send(t, m, "first")

	if cmd := send(t, m, "second"); cmd != nil {
		t.Fatalf("expected no command while busy")
	}
	if m.notice == "" || !strings.Contains(m.View(), "Still waiting") {
		t.Fatalf("expected busy notice, got %q", m.notice)
	}
	if m.textArea.Value() != "second" {
		t.Fatalf("expected input kept while busy, got %q", m.textArea.Value())
	}
}

func TestChat_ClearDropsPendingResult(t *testing.T) {
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "late", nil
	}))
	result, _ := find[resultMsg](collect(send(t, m, "one")))
	m.Update(result)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected history file: %v", err)
	}

	pending, _ := find[resultMsg](collect(send(t, m, "two")))
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected history file removed, got %v", err)
	}
	if len(m.transcript) != 1 || m.transcript[0].content != "Chat cleared." {
		t.Fatalf("unexpected transcript after clear: %+v", m.transcript)
	}

	m.Update(pending)
	if m.ctrl.Snapshot() != "" {
		t.Fatalf("late result applied after clear: %q", m.ctrl.Snapshot())
	}
}

func TestChat_BackendErrorRendered(t *testing.T) {
	m, path := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "", &gateway.BackendError{Message: "could not reach Ollama"}
	}))
	result, _ := find[resultMsg](collect(send(t, m, "hello")))
	m.Update(result)

	last := m.transcript[len(m.transcript)-1]
	if last.sender != controller.SenderBot || !strings.HasPrefix(last.content, "Error: ") {
		t.Fatalf("expected error turn, got %+v", last)
	}
	if m.ctrl.Snapshot() != "" {
		t.Fatalf("context changed on error: %q", m.ctrl.Snapshot())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected nothing saved, got %v", err)
	}
}

func TestChat_RestoresSavedHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	st := store.NewFileStore(path, nil)
	if err := st.Save(context.Background(), "\nUser: earlier\nAI: reply"); err != nil {
		t.Fatal(err)
	}

	var seen string
	m := newChatWithStore(t, testConfig("llama3"), gatewayFunc(func(_ context.Context, history, _ string) (string, error) {
		seen = history
		return "ok", nil
	}), st)

	if len(m.transcript) != 1 || m.transcript[0].sender != controller.SenderHistory {
		t.Fatalf("expected restored history line, got %+v", m.transcript)
	}
	result, _ := find[resultMsg](collect(send(t, m, "now")))
	m.Update(result)
	if seen != "\nUser: earlier\nAI: reply" {
		t.Fatalf("gateway did not receive restored context: %q", seen)
	}
}

func TestChat_MalformedHistoryStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := newChatWithStore(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "", nil
	}), store.NewFileStore(path, nil))

	if m.ctrl.Snapshot() != "" {
		t.Fatalf("expected empty context, got %q", m.ctrl.Snapshot())
	}
	if len(m.transcript) != 1 || !strings.Contains(m.transcript[0].content, "Could not load history") {
		t.Fatalf("expected load notice, got %+v", m.transcript)
	}
}

func TestChat_MarkdownAnswers(t *testing.T) {
	cfg := testConfig("llama3")
	cfg.Chat.Markdown = true
	m, _ := newChat(t, cfg, gatewayFunc(func(context.Context, string, string) (string, error) {
		return "# Title\n\nsome **bold** text", nil
	}))
	if m.markdown == nil {
		t.Fatalf("expected a markdown renderer")
	}
	result, _ := find[resultMsg](collect(send(t, m, "format")))
	m.Update(result)

	out := m.View()
	if !strings.Contains(out, "bold") || strings.Contains(out, "**bold**") {
		t.Fatalf("expected rendered markdown, got: %s", out)
	}
}

func TestChat_DebugFooter(t *testing.T) {
	cfg := testConfig("llama3")
	cfg.Chat.Debug = true
	m, _ := newChat(t, cfg, gatewayFunc(func(context.Context, string, string) (string, error) {
		return "4", nil
	}))
	result, _ := find[resultMsg](collect(send(t, m, "2+2?")))
	result.Elapsed = 1500 * time.Millisecond
	m.Update(result)

	out := m.View()
	if !strings.Contains(out, "[Response: 1.5s]") || !strings.Contains(out, "chat_history.json") {
		t.Fatalf("expected debug footer, got: %s", out)
	}
}

func TestModelPicker_SelectAndWarmUp(t *testing.T) {
	var warmed string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"alpha"},{"name":"beta"}]}`))
		case "/api/ps":
			w.Write([]byte(`{"models":[{"name":"beta"}]}`))
		case "/api/generate":
			warmed = "yes"
			w.Write([]byte(`{"model":"beta","response":"","done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testConfig("")
	cfg.Host.URL = server.URL
	host, err := models.NewHost(cfg.Host, nil)
	if err != nil {
		t.Fatal(err)
	}
	var chosen string
	m := initialModel(Dependencies{
		Config: cfg,
		Store:  store.NewFileStore(filepath.Join(t.TempDir(), "h.json"), nil),
		Host:   host,
		NewGateway: func(name string) (gateway.Gateway, error) {
			chosen = name
			return gateway.New(cfg.Host, name, time.Second, nil)
		},
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	ready, ok := find[modelsReadyMsg](collect(m.Init()))
	if !ok {
		t.Fatalf("expected modelsReadyMsg")
	}
	if !strings.Contains(m.View(), "Fetching models") {
		t.Fatalf("expected fetching view, got %s", m.View())
	}
	m.Update(ready)
	if m.state != viewModelSelector || len(m.modelList.Items()) != 2 {
		t.Fatalf("expected model selector with 2 items; state=%v count=%d", m.state, len(m.modelList.Items()))
	}
	if first := m.modelList.Items()[0].(item); first.title != "beta" || first.Description() != "Currently loaded" {
		t.Fatalf("expected loaded model first, got %+v", first)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if chosen != "beta" || m.state != viewLoadingChat {
		t.Fatalf("expected loading beta, got chosen=%q state=%v", chosen, m.state)
	}
	if !strings.Contains(m.View(), "Loading beta") {
		t.Fatalf("expected loading view, got %s", m.View())
	}

	msg, ok := find[chatReadyMsg](collect(cmd))
	if !ok || warmed != "yes" {
		t.Fatalf("expected warm-up request and chatReadyMsg")
	}
	m.Update(msg)
	if m.state != viewChat || !strings.Contains(m.View(), "Model: beta") {
		t.Fatalf("expected chat with beta, got state=%v", m.state)
	}
}

func TestModelPicker_LoadError(t *testing.T) {
	m := initialModel(Dependencies{Config: testConfig("")})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m.Update(modelsLoadErr{err: errors.New("Ollama is not accessible")})
	if out := m.View(); !strings.Contains(out, "Error: Ollama is not accessible") {
		t.Fatalf("expected error view, got %s", out)
	}
}

func TestWarmUpFailureStillOpensChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'llama3' not found"}`))
	}))
	defer server.Close()

	cfg := testConfig("llama3")
	cfg.Host.URL = server.URL
	m := initialModel(Dependencies{
		Config: cfg,
		Store:  store.NewFileStore(filepath.Join(t.TempDir(), "h.json"), nil),
		NewGateway: func(name string) (gateway.Gateway, error) {
			return gateway.New(cfg.Host, name, time.Second, nil)
		},
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	failed, ok := find[chatReadyErr](collect(m.Init()))
	if !ok {
		t.Fatalf("expected chatReadyErr from a failing warm-up")
	}
	if m.state != viewLoadingChat {
		t.Fatalf("expected loading view before the warm-up result, got %v", m.state)
	}
	m.Update(failed)

	if m.state != viewChat || m.err != nil || m.isLoading {
		t.Fatalf("expected chat view after warm-up failure; state=%v err=%v loading=%v", m.state, m.err, m.isLoading)
	}
	if out := m.View(); strings.HasPrefix(strings.TrimSpace(out), "Error:") || !strings.Contains(out, "Model: llama3") {
		t.Fatalf("expected chat view output, got: %s", out)
	}
	last := m.transcript[len(m.transcript)-1]
	if last.sender != controller.SenderHistory || !strings.Contains(last.content, "model 'llama3' not found") {
		t.Fatalf("expected warm-up notice, got %+v", last)
	}
}

func TestView_Initializing(t *testing.T) {
	m := initialModel(Dependencies{Config: testConfig("llama3")})
	if m.View() != "Initializing..." {
		t.Fatalf("expected initializing view")
	}
}

func TestLightTheme(t *testing.T) {
	if newTheme("light").glamour != "light" || newTheme("dark").glamour != "dark" {
		t.Fatalf("theme does not match glamour style")
	}
}

func TestView_DoesNotRefreshTranscript(t *testing.T) {
	m, _ := newChat(t, testConfig("llama3"), gatewayFunc(func(context.Context, string, string) (string, error) {
		return "", nil
	}))
	m.transcript = append(m.transcript, message{sender: controller.SenderHistory, content: "not yet rendered"})

	if strings.Contains(m.View(), "not yet rendered") {
		t.Fatalf("View must not re-render the transcript")
	}
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if !strings.Contains(m.View(), "not yet rendered") {
		t.Fatalf("expected transcript after a refresh")
	}
}
