package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
)

const volumeBarWidth = 10

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Hope Whisperer"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("A safe space for support and guidance on your recovery journey"))
	b.WriteString("\n\n")

	if m.view.Mode == shell.ModeSetup {
		m.renderSetup(&b)
	} else {
		m.renderConversation(&b)
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}

	if notices := renderNotices(m.view.Notices); notices != "" {
		b.WriteString("\n")
		b.WriteString(notices)
	}

	if len(m.view.Disclaimer) > 0 {
		b.WriteString("\n")
		b.WriteString(footerStyle.Render(strings.Join(m.view.Disclaimer, "\n")))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderSetup(b *strings.Builder) {
	b.WriteString("To get started, you'll need your ElevenLabs API key.\n")
	b.WriteString("It is stored locally and never shared.\n\n")
	b.WriteString(m.apiKey.View())
	b.WriteString("\n\n")
	b.WriteString(renderHelp(m.keys.Submit, m.keys.ToggleShow, m.keys.ForceQuit))
	b.WriteString("\n")
}

func (m Model) renderConversation(b *strings.Builder) {
	b.WriteString(statusBadge(m.view.Status))
	if m.view.Status == model.StatusConnected {
		if m.view.Speaking {
			b.WriteString("  ")
			b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Render("● Counselor is speaking"))
		} else {
			b.WriteString("  ")
			b.WriteString(subtitleStyle.Render("○ Your counselor is listening"))
		}
	}
	b.WriteString("\n\n")

	if !m.view.PermissionGranted {
		alert := alertStyle
		if m.width > 8 {
			alert = alert.Width(min(m.width-4, 72))
		}
		b.WriteString(alert.Render("Microphone access is required for voice conversations. Press p to grant access."))
		b.WriteString("\n\n")
	}

	b.WriteString(m.agent.View())
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Voice Volume: %s %d%%\n\n", volumeBar(m.view.Volume), int(m.view.Volume*100+0.5)))

	switch {
	case m.view.Status != model.StatusDisconnected:
		b.WriteString("Press s to End Conversation\n")
	case m.view.CanStart:
		b.WriteString("Press s to Start Conversation\n")
	default:
		b.WriteString(subtitleStyle.Render("Start Conversation (needs microphone access and an agent id)"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.focus == focusAgent {
		b.WriteString(renderHelp(m.keys.Submit, m.keys.ForceQuit))
	} else {
		b.WriteString(renderHelp(m.keys.StartStop, m.keys.FocusNext, m.keys.VolumeUp, m.keys.VolumeDown,
			m.keys.Permission, m.keys.Dismiss, m.keys.Reset, m.keys.Quit))
	}
	b.WriteString("\n")
}

func statusBadge(status model.Status) string {
	switch status {
	case model.StatusConnected:
		return badgeStyle.Foreground(colorGood).Render("● Connected")
	case model.StatusConnecting:
		return badgeStyle.Foreground(colorWarn).Render("◌ Connecting...")
	default:
		return badgeStyle.Foreground(colorMuted).Render("○ Disconnected")
	}
}

func volumeBar(volume float64) string {
	filled := int(volume*volumeBarWidth + 0.5)
	if filled > volumeBarWidth {
		filled = volumeBarWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", volumeBarWidth-filled) + "]"
}

func renderNotices(notices []shell.Notice) string {
	if len(notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(notices))
	for _, n := range notices {
		style := noticeInfoStyle
		if n.Kind == shell.NoticeError {
			style = noticeErrorStyle
		}
		lines = append(lines, style.Render(n.Title+"\n"+subtitleStyle.Render(n.Description)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderHelp(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}
