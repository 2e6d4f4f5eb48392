// Package ui provides the interactive terminal chat using Bubble Tea.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
)

// Runner answers a query in the context of prior history.
type Runner interface {
	Run(ctx context.Context, query string, history []models.HistoryEntry, opts ...agent.RunOption) (*agent.Response, error)
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	styles    Styles

	state       types.AgentState
	messages    []chatMessage
	currentTool *toolExecution
	width       int
	height      int
	ready       bool
	quitting    bool

	ctx       context.Context
	cancel    context.CancelFunc
	runner    Runner
	toolNames []string

	// history carries the exported turns between runs.
	history []models.HistoryEntry
}

type chatMessage struct {
	role    string // "user", "assistant", "system", "tool"
	content string
	tool    *toolExecution
}

type toolExecution struct {
	name     string
	args     map[string]any
	output   string
	success  bool
	err      string
	duration string
}

// progressMsg carries one loop transition of the active run.
type progressMsg struct {
	event agent.Event
	ch    <-chan tea.Msg
}

// doneMsg ends the active run.
type doneMsg struct {
	resp *agent.Response
	err  error
}

// NewModel creates a chat model bound to runner. toolNames feeds the
// "tools" command.
func NewModel(ctx context.Context, runner Runner, toolNames []string) Model {
	ti := textinput.New()
	ti.Placeholder = "Paste an order email or ask about products, customers and orders..."
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(DefaultTheme().Primary)

	vp := viewport.New(0, 0)

	return Model{
		textInput: ti,
		spinner:   s,
		viewport:  vp,
		styles:    DefaultStyles(),
		state:     types.StateIdle,
		ctx:       ctx,
		runner:    runner,
		toolNames: toolNames,
	}
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, runner Runner, toolNames []string) error {
	p := tea.NewProgram(NewModel(ctx, runner, toolNames), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) headerHeight() int {
	return lipgloss.Height(m.styles.BannerTitle.Render(Banner())) + 3
}

func (m Model) footerHeight() int {
	return 4
}

func (m *Model) updateViewport() {
	var b strings.Builder

	for _, msg := range m.messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.currentTool != nil {
		b.WriteString(m.renderToolInProgress())
		b.WriteString("\n")
	}

	if m.state != types.StateIdle {
		b.WriteString(m.renderStatus())
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == types.StateIdle {
				m.quitting = true
				return m, tea.Quit
			}
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil

		case tea.KeyEnter:
			if m.state != types.StateIdle {
				return m, nil
			}
			query := strings.TrimSpace(m.textInput.Value())
			if query == "" {
				return m, nil
			}
			m.textInput.SetValue("")

			if cmd, handled := m.handleCommand(query); handled {
				m.updateViewport()
				return m, cmd
			}

			run := m.submit(query)
			m.updateViewport()
			return m, tea.Batch(run, m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10

		vpHeight := max(msg.Height-m.headerHeight()-m.footerHeight(), 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.ready = true
		m.updateViewport()

	case progressMsg:
		m.applyEvent(msg.event)
		m.updateViewport()
		return m, waitForRun(msg.ch)

	case doneMsg:
		m.finish(msg)
		m.updateViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state != types.StateIdle {
			cmds = append(cmds, cmd)
			m.updateViewport()
		}
	}

	if m.state == types.StateIdle {
		var tiCmd tea.Cmd
		m.textInput, tiCmd = m.textInput.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// submit records the user turn and starts a run in the background. The
// returned command yields the run's first message.
func (m *Model) submit(query string) tea.Cmd {
	m.messages = append(m.messages, chatMessage{role: "user", content: query})
	m.state = types.StateThinking

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	runner := m.runner
	history := append([]models.HistoryEntry(nil), m.history...)
	ch := make(chan tea.Msg, 8)

	go func() {
		defer close(ch)
		defer cancel()
		resp, err := runner.Run(ctx, query, history, agent.WithObserver(func(ev agent.Event) {
			select {
			case ch <- progressMsg{event: ev}:
			case <-ctx.Done():
			}
		}))
		ch <- doneMsg{resp: resp, err: err}
	}()

	return waitForRun(ch)
}

func waitForRun(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		if p, isProgress := msg.(progressMsg); isProgress {
			p.ch = ch
			return p
		}
		return msg
	}
}

func (m *Model) applyEvent(ev agent.Event) {
	switch ev.State {
	case agent.StateAwaitingModel:
		m.state = types.StateThinking

	case agent.StateExecutingTools:
		m.state = types.StateToolExecuting
		if ev.Call == nil {
			return
		}
		if ev.Result == nil {
			m.currentTool = &toolExecution{name: ev.Call.Name, args: decodeArgs(ev.Call.Arguments)}
			return
		}
		tool := &toolExecution{
			name:     ev.Call.Name,
			args:     decodeArgs(ev.Call.Arguments),
			success:  ev.Result.Success,
			err:      ev.Result.Error,
			duration: ev.Result.Duration.String(),
		}
		if ev.Result.Success {
			tool.output = ev.Result.String()
		}
		m.messages = append(m.messages, chatMessage{role: "tool", tool: tool})
		m.currentTool = nil

	case agent.StateDone, agent.StateIterationsExhausted:
		m.state = types.StateResponding
	}
}

func (m *Model) finish(done doneMsg) {
	m.state = types.StateIdle
	m.currentTool = nil
	m.cancel = nil

	if done.err != nil {
		m.messages = append(m.messages, chatMessage{role: "system", content: "Error: " + done.err.Error()})
		return
	}
	if done.resp == nil {
		return
	}

	m.history = done.resp.History
	if done.resp.Response != "" {
		m.messages = append(m.messages, chatMessage{role: "assistant", content: done.resp.Response})
	}
	if done.resp.Termination == models.TerminationExhausted {
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: fmt.Sprintf("Stopped after %d iterations without a final answer.", done.resp.Iterations),
		})
	}
}

func (m *Model) handleCommand(input string) (tea.Cmd, bool) {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		m.quitting = true
		return tea.Quit, true

	case "clear":
		m.messages = nil
		m.history = nil
		return nil, true

	case "help", "?":
		m.messages = append(m.messages, chatMessage{
			role: "system",
			content: `Available commands:
  help, ?     Show this help
  tools       List the tools the assistant can call
  clear       Clear the conversation
  exit, quit  Exit

Example queries:
  "What products do we have?"
  "Find the customer with email jane@example.com"
  "From: jane@example.com  Subject: Order  Please send me 2 Laptops"`,
		})
		return nil, true

	case "tools":
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: "Available tools:\n  " + strings.Join(m.toolNames, "\n  "),
		})
		return nil, true
	}

	return nil, false
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return m.styles.SystemMessage.Render("Goodbye!\n")
	}
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.styles.BannerTitle.Render(Banner()))
	b.WriteString("\n")
	b.WriteString(m.styles.Subtitle.Render("  " + Tagline))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.styles.Prompt.Render("> "))
	if m.state == types.StateIdle {
		b.WriteString(m.textInput.View())
	} else {
		b.WriteString(m.styles.StatusText.Render("(working... esc to cancel)"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return m.styles.App.Render(b.String())
}

func (m Model) renderMessage(msg chatMessage) string {
	switch msg.role {
	case "user":
		return m.styles.UserMessage.Render("You: " + msg.content)
	case "assistant":
		return m.styles.AssistantMessage.Render("Parcel: " + msg.content)
	case "system":
		return m.styles.SystemMessage.Render(msg.content)
	case "tool":
		if msg.tool != nil {
			return m.renderToolResult(msg.tool)
		}
	}
	return ""
}

func (m Model) renderToolHeader(t *toolExecution) string {
	header := m.styles.ToolName.Render("Tool: " + t.name)
	if params := formatArgs(t.args); params != "" {
		header += " " + m.styles.ToolParams.Render("("+params+")")
	}
	return header
}

func (m Model) renderToolResult(t *toolExecution) string {
	var b strings.Builder
	b.WriteString(m.renderToolHeader(t))
	b.WriteString("\n")

	if !t.success {
		b.WriteString(m.styles.ToolError.Render("  Failed: " + t.err))
		return m.styles.ToolBox.Render(b.String())
	}

	b.WriteString(m.styles.ToolSuccess.Render("  Success"))
	if t.duration != "" && t.duration != "0s" {
		b.WriteString(m.styles.ToolParams.Render(" (" + t.duration + ")"))
	}
	if t.output != "" {
		output := t.output
		if len(output) > 300 {
			output = output[:300] + "..."
		}
		b.WriteString("\n")
		b.WriteString(m.styles.ToolOutput.Render("  | " + output))
	}
	return m.styles.ToolBox.Render(b.String())
}

func (m Model) renderToolInProgress() string {
	return m.styles.ToolBox.Render(m.renderToolHeader(m.currentTool) + "\n" +
		m.spinner.View() + " " + m.styles.StatusText.Render("Executing..."))
}

func (m Model) renderStatus() string {
	return fmt.Sprintf("%s %s", m.spinner.View(), m.styles.StateLabel.Render(m.state.String()+"..."))
}

func (m Model) renderHelpBar() string {
	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("esc") + m.styles.HelpValue.Render(" cancel/quit"),
		m.styles.HelpKey.Render("help") + m.styles.HelpValue.Render(" commands"),
		m.styles.HelpKey.Render("tools") + m.styles.HelpValue.Render(" list tools"),
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}

func decodeArgs(raw json.RawMessage) map[string]any {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}
	return args
}

// formatArgs renders arguments as sorted key=value pairs.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ", ")
}
