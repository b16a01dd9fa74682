package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

func (m *model) renderTitleBar() string {
	if m.conv == nil {
		return titleStyle.Render("greenroom")
	}
	return titleStyle.Render("#" + m.channelTitle())
}

// channelTitle prefers the configured display name and falls back to the
// channel id.
func (m *model) channelTitle() string {
	if m.cfg.ChannelName != "" {
		return m.cfg.ChannelName
	}
	if m.conv != nil {
		return shortID(m.conv.ID())
	}
	return shortID(m.cfg.ChannelID)
}

// updateLayout recomputes component sizes after a resize or a change in a
// component's height. Widths have to be set before measuring heights since
// wrapping changes them.
func (m *model) updateLayout() {
	contentWidth := m.width
	if contentWidth < 10 {
		contentWidth = 10
	}
	m.viewport.Width = contentWidth
	m.input.SetWidth(contentWidth)

	titleHeight := lipgloss.Height(m.renderTitleBar())
	inputHeight := lipgloss.Height(m.input.View())
	statusHeight := lipgloss.Height(m.viewStatusBar())
	acHeight := 0
	if ac := m.viewAutocomplete(); ac != "" {
		acHeight = lipgloss.Height(ac)
	}

	contentHeight := m.height - titleHeight - inputHeight - statusHeight - acHeight
	if contentHeight < 1 {
		contentHeight = 1
	}
	m.viewport.Height = contentHeight
	m.updateViewport()
}

// updateViewport re-renders the chat transcript into the viewport. Each
// message is a colored "HH:MM author: " prefix followed by
// markdown-rendered content, with continuation lines padded under the
// prefix and wrapped to the remaining width.
func (m *model) updateViewport() {
	if m.viewport.Width <= 0 {
		return
	}

	var lines []string
	for _, e := range m.entries {
		if e.Author == "system" {
			lines = append(lines, chatSystemStyle.Render("  "+e.Content))
			continue
		}

		authorStyle := chatOwnAuthorStyle
		if !e.Mine {
			authorStyle = lipgloss.NewStyle().Foreground(colorForSender(e.Sender)).Bold(true)
		}

		ts := "--:--"
		if !e.SentAt.IsZero() {
			ts = e.SentAt.Local().Format("15:04")
		}
		// Markdown renderers collapse single newlines; double them so
		// intentional line breaks survive.
		mdContent := strings.ReplaceAll(e.Content, "\n", "\n\n")
		content := renderMarkdown(m.mdRender, mdContent)
		prefix := fmt.Sprintf("%s %s: ",
			chatTimestampStyle.Render(ts),
			authorStyle.Render(m.displayName(e)))
		prefixW := lipgloss.Width(prefix)
		pad := strings.Repeat(" ", prefixW)
		wrapWidth := m.viewport.Width - prefixW

		// Drop the blank lines glamour pads its output with. TrimSpace
		// alone cannot tell a styled line from a blank one; strip ANSI
		// first.
		rawLines := strings.Split(content, "\n")
		for len(rawLines) > 0 && strings.TrimSpace(ansi.Strip(rawLines[0])) == "" {
			rawLines = rawLines[1:]
		}
		for len(rawLines) > 0 && strings.TrimSpace(ansi.Strip(rawLines[len(rawLines)-1])) == "" {
			rawLines = rawLines[:len(rawLines)-1]
		}

		// Wrap at word boundaries first, then hard-wrap whatever still
		// overflows (long unbroken words like URLs).
		var contentLines []string
		for _, cl := range rawLines {
			wrapped := wordwrap.String(cl, wrapWidth)
			for _, wl := range strings.Split(wrapped, "\n") {
				if lipgloss.Width(wl) > wrapWidth {
					contentLines = append(contentLines, strings.Split(wrap.String(wl, wrapWidth), "\n")...)
				} else {
					contentLines = append(contentLines, wl)
				}
			}
		}
		if len(contentLines) == 0 {
			contentLines = []string{""}
		}
		lines = append(lines, prefix+contentLines[0])
		for _, cl := range contentLines[1:] {
			lines = append(lines, pad+cl)
		}
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.qrOverlay != "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.qrOverlay)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewContent(), m.viewStatusBar())
}

func (m *model) viewContent() string {
	parts := []string{m.renderTitleBar(), m.viewport.View()}
	if ac := m.viewAutocomplete(); ac != "" {
		parts = append(parts, ac)
	}
	parts = append(parts, m.input.View())

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	totalHeight := m.height - lipgloss.Height(m.viewStatusBar())
	if totalHeight < 1 {
		totalHeight = 1
	}
	return lipgloss.NewStyle().Height(totalHeight).MaxHeight(totalHeight).Render(content)
}

func (m *model) viewStatusBar() string {
	state := "○ connecting"
	switch {
	case m.live:
		state = "● live"
	case m.session != nil:
		state = "◌ connected"
	}
	left := statusConnectedStyle.Render(fmt.Sprintf("%s · %d members · %d relays",
		state, m.memberCount, len(m.cfg.Relays)))
	right := shortAddr(m.wallet.Address())

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - statusBarStyle.GetHorizontalPadding()
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
