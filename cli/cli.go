// cli/cli.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/gollamachat/config"
	"github.com/mwiater/gollamachat/controller"
	"github.com/mwiater/gollamachat/conversation"
	"github.com/mwiater/gollamachat/gateway"
	"github.com/mwiater/gollamachat/models"
	"github.com/mwiater/gollamachat/store"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the chat UI is built from.
type Dependencies struct {
	Config *config.Config
	Store  store.Store
	// Host lists models for the picker shown when no model is configured.
	Host models.LLMHost
	// NewGateway builds the gateway for the chosen model.
	NewGateway func(model string) (gateway.Gateway, error)
	Logger     *zap.Logger
}

// warmer is implemented by gateways that can load their model ahead of the first question.
type warmer interface {
	WarmUp(ctx context.Context) error
}

// viewState represents the current state of the application's view.
type viewState int

const (
	// viewModelSelector is the state where the user selects a model.
	viewModelSelector viewState = iota
	// viewLoadingChat is the state while a model is being loaded for chat.
	viewLoadingChat
	// viewChat is the state where the user is interacting with the chat.
	viewChat
)

// message is one line of the transcript.
type message struct {
	sender  controller.Sender
	content string
	// rendered caches the markdown rendering of content for width.
	rendered string
	width    int
}

// model is the main application model for the Bubble Tea UI. It is the
// single owner of the conversation controller: every controller call
// happens inside Update.
type model struct {
	ctx    context.Context
	deps   Dependencies
	cfg    *config.Config
	logger *zap.Logger
	ctrl   *controller.Controller

	state     viewState
	isLoading bool
	err       error
	// notice is a transient status line, cleared by the next key press.
	notice string

	modelList list.Model
	textArea  textarea.Model
	viewport  viewport.Model
	spinner   spinner.Model

	theme      theme
	markdown   *glamour.TermRenderer
	transcript []message

	selectedModel    string
	width, height    int
	requestStartTime time.Time
	lastElapsed      time.Duration
	quitting         bool
}

// item represents a selectable model in the picker.
type item struct {
	title  string
	desc   string
	loaded bool
}

// Title returns the title of the list item.
func (i item) Title() string { return i.title }

// Description returns "Currently loaded" for loaded models.
func (i item) Description() string {
	if i.loaded {
		return "Currently loaded"
	}
	return i.desc
}

// FilterValue returns the title of the item, used for filtering in the list.
func (i item) FilterValue() string { return i.title }

// modelsReadyMsg is sent when the model list is fetched and processed.
type modelsReadyMsg struct {
	models []list.Item
}

// modelsLoadErr is sent when an error occurs while fetching models.
type modelsLoadErr struct{ err error }

// chatReadyMsg is sent when the chat model has been loaded.
type chatReadyMsg struct{}

// chatReadyErr is sent when the model could not be loaded ahead of time.
type chatReadyErr struct{ err error }

// resultMsg carries a finished gateway call back to Update.
type resultMsg controller.Result

// tickMsg refreshes the elapsed timer while a request is pending.
type tickMsg time.Time

// initialModel builds the UI. With a configured model it goes straight to
// loading the chat; otherwise it starts in the model picker.
func initialModel(deps Dependencies) *model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	th := newTheme(deps.Config.Chat.Theme)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = th.spinner

	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "You: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	modelList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	modelList.Title = fmt.Sprintf("Select a Model from %s", deps.Config.Host.Name)

	m := &model{
		ctx:       context.Background(),
		deps:      deps,
		cfg:       deps.Config,
		logger:    deps.Logger,
		state:     viewModelSelector,
		spinner:   s,
		textArea:  ta,
		modelList: modelList,
		viewport:  viewport.New(100, 5),
		theme:     th,
	}
	if deps.Config.Model != "" {
		m.state = viewLoadingChat
		m.selectedModel = deps.Config.Model
	}
	return m
}

// fetchModelsCmd lists the host's models with loaded ones first.
func fetchModelsCmd(ctx context.Context, host models.LLMHost) tea.Cmd {
	return func() tea.Msg {
		catalog, err := models.Catalog(ctx, host)
		if err != nil {
			return modelsLoadErr{err: err}
		}
		items := make([]list.Item, len(catalog))
		for i, mod := range catalog {
			items[i] = item{title: mod.Name, desc: "Select this model", loaded: mod.Loaded}
		}
		return modelsReadyMsg{models: items}
	}
}

// warmUpCmd asks the gateway to load its model before the chat opens.
func warmUpCmd(ctx context.Context, w warmer) tea.Cmd {
	return func() tea.Msg {
		if err := w.WarmUp(ctx); err != nil {
			return chatReadyErr{err: err}
		}
		return chatReadyMsg{}
	}
}

// runJobCmd runs a dispatched job on the command goroutine.
func runJobCmd(ctx context.Context, job *controller.Job) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(job.Run(ctx))
	}
}

// tickCmd returns a Bubble Tea command that sends a tickMsg at a regular interval.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// beginChat wires the controller for chosen, restores saved history and
// starts loading the model.
func (m *model) beginChat(chosen string) tea.Cmd {
	gw, err := m.deps.NewGateway(chosen)
	if err != nil {
		m.err = err
		return nil
	}
	m.selectedModel = chosen
	m.ctrl = controller.New(
		conversation.NewBuffer(m.cfg.History.MaxTurns),
		m.deps.Store,
		gw,
		m,
		controller.Options{ExitCommand: m.cfg.Chat.ExitCommand, Logger: m.logger},
	)
	// A failed load is shown in the transcript by the controller.
	_ = m.ctrl.Restore(m.ctx)

	m.state = viewLoadingChat
	m.isLoading = true
	m.requestStartTime = time.Now()
	m.err = nil
	if w, ok := gw.(warmer); ok {
		return tea.Batch(m.spinner.Tick, warmUpCmd(m.ctx, w), tickCmd())
	}
	return func() tea.Msg { return chatReadyMsg{} }
}

// Display implements controller.Display by appending to the transcript.
func (m *model) Display(sender controller.Sender, content string) {
	m.transcript = append(m.transcript, message{sender: sender, content: content})
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// Init starts the model picker or the chat, depending on the configuration.
func (m *model) Init() tea.Cmd {
	if m.state == viewLoadingChat {
		return tea.Batch(m.spinner.Tick, m.beginChat(m.selectedModel))
	}
	m.isLoading = true
	m.requestStartTime = time.Now()
	return tea.Batch(m.spinner.Tick, fetchModelsCmd(m.ctx, m.deps.Host), tickCmd())
}

// quit saves the conversation and stops the program.
func (m *model) quit() tea.Cmd {
	if m.ctrl != nil {
		if err := m.ctrl.Terminate(m.ctx); err != nil {
			m.logger.Error("could not save history on quit", zap.Error(err))
		}
	}
	m.quitting = true
	return tea.Quit
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, m.quit()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.modelList.SetSize(msg.Width-2, msg.Height-4)
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := 4
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		if m.cfg.Chat.Markdown {
			m.markdown = newMarkdownRenderer(m.theme.glamour, msg.Width-6)
		}
		m.refreshViewport()
		return m, nil

	case modelsReadyMsg:
		m.isLoading = false
		m.modelList.SetItems(msg.models)
		m.state = viewModelSelector
		return m, nil

	case modelsLoadErr:
		m.isLoading = false
		m.err = msg.err
		return m, nil

	case chatReadyMsg:
		m.isLoading = false
		m.state = viewChat
		m.textArea.Focus()
		m.viewport.GotoBottom()
		return m, nil

	case chatReadyErr:
		// The chat still opens; every question will report the same failure.
		m.logger.Warn("model warm-up failed", zap.String("model", m.selectedModel), zap.Error(msg.err))
		m.isLoading = false
		m.state = viewChat
		m.textArea.Focus()
		m.Display(controller.SenderHistory, fmt.Sprintf("Could not load %s: %v", m.selectedModel, msg.err))
		return m, nil

	case resultMsg:
		if m.ctrl.Complete(m.ctx, controller.Result(msg)) {
			m.lastElapsed = msg.Elapsed
		}
		m.isLoading = m.ctrl.State() == controller.AwaitingResponse
		m.viewport.GotoBottom()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	switch m.state {
	case viewModelSelector:
		m.modelList, cmd = m.modelList.Update(msg)
		cmds = append(cmds, cmd)
		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" && !m.isLoading {
			if selected, ok := m.modelList.SelectedItem().(item); ok {
				cmds = append(cmds, m.beginChat(selected.Title()))
			}
		}

	case viewChat:
		if key, ok := msg.(tea.KeyMsg); ok {
			m.notice = ""
			switch key.String() {
			case "enter":
				return m, m.submit()
			case "ctrl+l":
				m.lastElapsed = 0
				m.transcript = nil
				if err := m.ctrl.Clear(m.ctx); errors.Is(err, controller.ErrTerminated) {
					return m, tea.Quit
				}
				m.isLoading = false
				m.refreshViewport()
				return m, nil
			case "pgup", "pgdown", "up", "down":
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
		} else {
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.isLoading {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit hands the input line to the controller.
func (m *model) submit() tea.Cmd {
	job, err := m.ctrl.Submit(m.ctx, m.textArea.Value())
	switch {
	case errors.Is(err, controller.ErrTerminated):
		m.quitting = true
		return tea.Quit
	case errors.Is(err, controller.ErrBusy):
		m.notice = "Still waiting for the previous response."
		return nil
	case err != nil:
		m.notice = err.Error()
		return nil
	}

	m.textArea.Reset()
	if job == nil {
		return nil
	}
	m.isLoading = true
	m.requestStartTime = time.Now()
	m.refreshViewport()
	m.viewport.GotoBottom()
	return tea.Batch(m.spinner.Tick, runJobCmd(m.ctx, job), tickCmd())
}

// View renders the application's UI based on its current state.
func (m *model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	if m.err != nil {
		return m.theme.errText.Padding(1).Render(fmt.Sprintf("Error: %v\n\n(esc to quit)", m.err))
	}

	switch m.state {
	case viewModelSelector:
		if m.isLoading {
			timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
			return fmt.Sprintf("\n  %s Fetching models... %ss\n", m.spinner.View(), timer)
		}
		return lipgloss.NewStyle().Margin(1, 2).Render(m.modelList.View())

	case viewLoadingChat:
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		return fmt.Sprintf("\n  %s Loading %s... %ss\n", m.spinner.View(), m.selectedModel, timer)

	case viewChat:
		return m.chatView()

	default:
		return "Unknown state"
	}
}

// renderMessage formats one transcript line for the current width.
func (m *model) renderMessage(msg *message) string {
	var role lipgloss.Style
	switch msg.sender {
	case controller.SenderBot:
		role = m.theme.bot
	case controller.SenderHistory:
		role = m.theme.history
	default:
		role = m.theme.you
	}
	label := role.Render(string(msg.sender) + ": ")
	width := m.width - lipgloss.Width(label) - 2
	if width < 10 {
		width = 10
	}

	content := msg.content
	switch {
	case msg.sender == controller.SenderBot && m.markdown != nil && !strings.HasPrefix(content, "Error: "):
		if msg.width != width || msg.rendered == "" {
			out, err := m.markdown.Render(content)
			if err != nil {
				out = content
			}
			msg.rendered, msg.width = strings.Trim(out, "\n"), width
		}
		return label + "\n" + msg.rendered
	case msg.sender == controller.SenderHistory:
		content = m.theme.history.Render(content)
	case msg.sender == controller.SenderBot && strings.HasPrefix(content, "Error: "):
		content = m.theme.errText.Render(content)
	}
	wrapped := lipgloss.NewStyle().Width(width).Render(content)
	return lipgloss.JoinHorizontal(lipgloss.Top, label, wrapped)
}

// refreshViewport re-renders the transcript into the viewport.
func (m *model) refreshViewport() {
	var b strings.Builder
	for i := range m.transcript {
		b.WriteString(m.renderMessage(&m.transcript[i]) + "\n")
	}
	if m.ctrl != nil && m.ctrl.State() == controller.AwaitingResponse {
		b.WriteString(m.theme.bot.Render("Bot: ") + m.theme.faint.Render("Typing..."))
	}
	m.viewport.SetContent(b.String())
}

// chatView renders the header, the transcript and the input line.
func (m *model) chatView() string {
	var builder strings.Builder

	status := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.header.Render(fmt.Sprintf("Host: %s", m.cfg.Host.Name)),
		m.theme.header.MarginLeft(1).Render(fmt.Sprintf("Model: %s", m.selectedModel)),
	)
	help := m.theme.faint.Render(" (enter to send, ctrl+l to clear, esc to quit)")
	builder.WriteString(status + help + "\n\n")

	builder.WriteString(m.viewport.View())

	builder.WriteString("\n" + m.textArea.View())

	switch {
	case m.notice != "":
		builder.WriteString("\n" + m.theme.notice.Render("  "+m.notice))
	case m.isLoading:
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Bot is typing... %ss", timer))
	}

	if m.cfg.Chat.Debug && m.lastElapsed > 0 {
		builder.WriteString("\n" + m.formatMeta())
	}

	return builder.String()
}

// formatMeta renders timing and context size of the last completed turn.
func (m *model) formatMeta() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	snapshot := m.ctrl.Snapshot()
	return style.Render(fmt.Sprintf(
		"  >>> [Response: %.1fs] [Context: %d bytes] [History: %s]",
		m.lastElapsed.Seconds(),
		len(snapshot),
		m.deps.Store.Location(),
	))
}

// StartGUI opens the configured history store and runs the chat UI until the
// user quits. The conversation is saved on the way out.
func StartGUI(cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	st, err := store.New(cfg.History, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	host, err := models.NewHost(cfg.Host, logger)
	if err != nil {
		return err
	}

	m := initialModel(Dependencies{
		Config: cfg,
		Store:  st,
		Host:   host,
		NewGateway: func(name string) (gateway.Gateway, error) {
			return gateway.New(cfg.Host, name, cfg.Gateway.RequestTimeout, logger)
		},
		Logger: logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	logger.Info("chat started", zap.String("host", cfg.Host.URL), zap.String("model", cfg.Model), zap.String("history", st.Location()))
	_, runErr := p.Run()

	if m.ctrl != nil {
		if err := m.ctrl.Terminate(context.Background()); err != nil {
			logger.Error("could not save history", zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("error running program: %w", runErr)
	}
	return nil
}
