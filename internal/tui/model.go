// Package tui renders the presentation shell in a terminal.
package tui

import (
	"context"
	"math"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

// Shell is the part of the presentation shell the terminal drives.
type Shell interface {
	View() shell.View
	SubmitCredential(ctx context.Context, raw string) error
	ResetCredential(ctx context.Context)
	RequestPermission(ctx context.Context) permission.State
	SetAgentID(agentID string) error
	SetVolume(ctx context.Context, volume float64) error
	StartConversation(ctx context.Context) error
	EndConversation(ctx context.Context)
	DismissNotice(id string) error
}

type focus int

const (
	focusAgent focus = iota
	focusControls
)

const volumeStep = 0.1

// viewMsg carries a view pushed by the shell.
type viewMsg struct {
	view shell.View
}

// opResultMsg reports the outcome of a shell operation run off the
// update loop.
type opResultMsg struct {
	err error
}

// Model is the bubbletea model. Every state change goes through the
// shell; the model only keeps form fields and focus.
type Model struct {
	ctx   context.Context
	shell Shell
	views <-chan shell.View
	keys  KeyMap

	view    shell.View
	apiKey  textinput.Model
	agent   textinput.Model
	showKey bool
	focus   focus
	err     string
	width   int
}

// NewModel builds the model. views is the shell subscription; it may be
// nil, in which case the model refreshes only after its own operations.
func NewModel(ctx context.Context, sh Shell, views <-chan shell.View) Model {
	apiKey := textinput.New()
	apiKey.Prompt = "ElevenLabs API Key: "
	apiKey.Placeholder = "sk-..."
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'
	apiKey.CharLimit = 256

	agent := textinput.New()
	agent.Prompt = "ElevenLabs Agent ID: "
	agent.Placeholder = "Enter your trained counselor agent ID"
	agent.CharLimit = 128

	m := Model{
		ctx:    ctx,
		shell:  sh,
		views:  views,
		keys:   DefaultKeyMap,
		view:   sh.View(),
		apiKey: apiKey,
		agent:  agent,
		focus:  focusControls,
	}
	m.agent.SetValue(m.view.AgentID)
	if m.view.AgentID == "" {
		m.focus = focusAgent
	}
	m.syncFocus()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForViews(m.views))
}

// listenForViews blocks until the shell publishes a view.
func listenForViews(views <-chan shell.View) tea.Cmd {
	if views == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return nil
		}
		return viewMsg{view: v}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case viewMsg:
		m.view = msg.view
		m.syncFocus()
		return m, listenForViews(m.views)

	case opResultMsg:
		m.err = ""
		if msg.err != nil {
			m.err = msg.err.Error()
		}
		m.view = m.shell.View()
		m.syncFocus()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.view.Mode == shell.ModeSetup {
			return m.updateSetup(msg)
		}
		return m.updateConversation(msg)
	}

	return m, nil
}

func (m Model) updateSetup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		raw := m.apiKey.Value()
		m.apiKey.Reset()
		return m, m.run(func(ctx context.Context) error {
			return m.shell.SubmitCredential(ctx, raw)
		})
	case key.Matches(msg, m.keys.ToggleShow):
		m.showKey = !m.showKey
		if m.showKey {
			m.apiKey.EchoMode = textinput.EchoNormal
		} else {
			m.apiKey.EchoMode = textinput.EchoPassword
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.apiKey, cmd = m.apiKey.Update(msg)
	return m, cmd
}

func (m Model) updateConversation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == focusAgent {
		switch {
		case key.Matches(msg, m.keys.Submit):
			agentID := m.agent.Value()
			m.focus = focusControls
			m.syncFocus()
			return m, m.run(func(context.Context) error {
				return m.shell.SetAgentID(agentID)
			})
		case key.Matches(msg, m.keys.FocusNext):
			m.focus = focusControls
			m.syncFocus()
			return m, nil
		}
		var cmd tea.Cmd
		m.agent, cmd = m.agent.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.FocusNext):
		if m.view.Status == model.StatusDisconnected {
			m.focus = focusAgent
			m.syncFocus()
		}
		return m, nil
	case key.Matches(msg, m.keys.StartStop):
		if m.view.Status == model.StatusDisconnected {
			return m, m.run(m.shell.StartConversation)
		}
		return m, m.run(func(ctx context.Context) error {
			m.shell.EndConversation(ctx)
			return nil
		})
	case key.Matches(msg, m.keys.VolumeUp):
		return m, m.setVolume(m.view.Volume + volumeStep)
	case key.Matches(msg, m.keys.VolumeDown):
		return m, m.setVolume(m.view.Volume - volumeStep)
	case key.Matches(msg, m.keys.Permission):
		return m, m.run(func(ctx context.Context) error {
			m.shell.RequestPermission(ctx)
			return nil
		})
	case key.Matches(msg, m.keys.Reset):
		return m, m.run(func(ctx context.Context) error {
			m.shell.ResetCredential(ctx)
			return nil
		})
	case key.Matches(msg, m.keys.Dismiss):
		if len(m.view.Notices) == 0 {
			return m, nil
		}
		id := m.view.Notices[0].ID
		return m, m.run(func(context.Context) error {
			return m.shell.DismissNotice(id)
		})
	}
	return m, nil
}

func (m Model) setVolume(level float64) tea.Cmd {
	level = math.Round(math.Min(1, math.Max(0, level))*10) / 10
	return m.run(func(ctx context.Context) error {
		return m.shell.SetVolume(ctx, level)
	})
}

// run executes op off the update loop; shell calls may block on the
// network or the microphone.
func (m Model) run(op func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opResultMsg{err: op(ctx)}
	}
}

func (m *Model) syncFocus() {
	if m.view.Mode == shell.ModeSetup {
		m.apiKey.Focus()
		m.agent.Blur()
		return
	}
	m.apiKey.Blur()

	if m.view.Status != model.StatusDisconnected && m.focus == focusAgent {
		m.focus = focusControls
	}
	if m.focus == focusAgent {
		m.agent.Focus()
		return
	}
	m.agent.Blur()
	m.agent.SetValue(m.view.AgentID)
}
