package main

import (
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/offstage-live/greenroom"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case sessionReadyMsg:
		return m.handleSessionReady(msg)
	case convReadyMsg:
		return m.handleConvReady(msg)
	case historyLoadedMsg:
		return m.handleHistoryLoaded(msg)
	case historyFailedMsg:
		return m.handleHistoryFailed(msg)
	case streamStartedMsg:
		return m.handleStreamStarted(msg)
	case liveMsg:
		return m.handleLiveMsg(msg)
	case sentMsg:
		return m.handleSent(msg)
	case membersLoadedMsg:
		return m.handleMembersLoaded(msg)
	case membersSyncedMsg:
		return m.handleMembersSynced(msg)
	case senderResolvedMsg:
		return m.handleSenderResolved(msg)
	case chatErrMsg:
		return m.handleChatErr(msg)
	}
	return m.handleInputUpdate(msg)
}

func (m *model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.updateLayout()
	return m, tea.ClearScreen
}

func (m *model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
	}
	return m, nil
}

func (m *model) handleSessionReady(msg sessionReadyMsg) (tea.Model, tea.Cmd) {
	m.session = msg.session
	m.addSystemMsg(fmt.Sprintf("connected as %s (inbox %s)",
		shortAddr(m.session.Address), shortID(m.session.Client.InboxID())))
	if m.cfg.ChannelID != "" {
		m.addSystemMsg("looking up channel " + shortID(m.cfg.ChannelID) + "...")
	} else {
		m.addSystemMsg(fmt.Sprintf("creating channel %q...", m.cfg.ChannelName))
	}
	return m, locateCmd(m.session, m.cfg)
}

func (m *model) handleConvReady(msg convReadyMsg) (tea.Model, tea.Cmd) {
	m.conv = msg.conv
	if msg.created {
		m.addSystemMsg("channel created — share this id with viewers: " + m.conv.ID())
	} else {
		m.addSystemMsg("joined channel " + shortID(m.conv.ID()))
	}
	return m, tea.Batch(
		historyCmd(m.conv, m.cfg.HistoryLimit),
		streamCmd(m.conv),
		membersCmd(m.session, m.conv, false),
	)
}

func (m *model) handleHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	added := 0
	for _, netMsg := range msg.msgs {
		e := m.entryFromMessage(netMsg)
		key := entryKey(e)
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.entries = appendEntry(m.entries, e, m.cfg.MaxMessages)
		added++
		if cmd := m.maybeResolveSender(e.Sender); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	if added > 0 {
		m.addSystemMsg(fmt.Sprintf("history: %d messages", added))
	}
	m.updateViewport()
	return m, tea.Batch(cmds...)
}

// handleHistoryFailed falls back to the local transcript so recent chat is
// still visible while the network misbehaves.
func (m *model) handleHistoryFailed(msg historyFailedMsg) (tea.Model, tea.Cmd) {
	log.Printf("handleHistoryFailed: %v", msg.err)
	m.addSystemMsg("history unavailable: " + msg.err.Error())
	if m.cfg.LoggingEnabled() && m.cfg.LogDir != "" && m.conv != nil {
		restored, err := loadTranscript(m.cfg.LogDir, m.conv.ID(), m.cfg.HistoryLimit)
		if err != nil {
			log.Printf("handleHistoryFailed: transcript: %v", err)
			return m, nil
		}
		for _, e := range restored {
			key := entryKey(e)
			if m.seen[key] {
				continue
			}
			m.seen[key] = true
			m.entries = appendEntry(m.entries, e, m.cfg.MaxMessages)
		}
		if len(restored) > 0 {
			m.addSystemMsg(fmt.Sprintf("restored %d lines from the local transcript", len(restored)))
		}
		m.updateViewport()
	}
	return m, nil
}

func (m *model) handleStreamStarted(msg streamStartedMsg) (tea.Model, tea.Cmd) {
	if m.streamCancel != nil {
		m.streamCancel()
	}
	m.events = msg.events
	m.streamCancel = msg.cancel
	m.live = true
	m.addSystemMsg("live feed connected")
	return m, waitForLiveMsg(m.events)
}

func (m *model) handleLiveMsg(msg liveMsg) (tea.Model, tea.Cmd) {
	// Re-arm first so a slow render never stalls the feed.
	cmds := []tea.Cmd{waitForLiveMsg(m.events)}

	e := m.entryFromMessage(greenroom.Message(msg))
	key := entryKey(e)
	if m.seen[key] {
		return m, tea.Batch(cmds...)
	}
	// Our own sends come back on the live feed with the authoritative
	// network timestamp; the local echo already displayed them.
	if e.Mine && m.sentEchoes[e.Content] {
		delete(m.sentEchoes, e.Content)
		m.seen[key] = true
		return m, tea.Batch(cmds...)
	}
	m.seen[key] = true
	m.appendChat(e)
	if cmd := m.maybeResolveSender(e.Sender); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleSent(msg sentMsg) (tea.Model, tea.Cmd) {
	if msg.msg == nil {
		return m, nil
	}
	e := m.entryFromMessage(*msg.msg)
	m.sentEchoes[e.Content] = true
	m.seen[entryKey(e)] = true
	m.appendChat(e)
	return m, nil
}

func (m *model) handleMembersLoaded(msg membersLoadedMsg) (tea.Model, tea.Cmd) {
	m.memberCount = msg.count
	if msg.announce {
		m.addSystemMsg(fmt.Sprintf("%d members:", msg.count))
		for _, line := range msg.lines {
			m.addSystemMsg("  " + line)
		}
	}
	return m, nil
}

func (m *model) handleMembersSynced(msg membersSyncedMsg) (tea.Model, tea.Cmd) {
	if msg.attempted == 0 {
		m.addSystemMsg("everyone is already in the channel")
	} else {
		m.addSystemMsg(fmt.Sprintf("attempted %d membership adds", msg.attempted))
	}
	return m, membersCmd(m.session, m.conv, false)
}

func (m *model) handleSenderResolved(msg senderResolvedMsg) (tea.Model, tea.Cmd) {
	delete(m.namePending, msg.inboxID)
	if msg.address != "" {
		m.names[msg.inboxID] = msg.address
		m.updateViewport()
	}
	return m, nil
}

func (m *model) handleChatErr(msg chatErrMsg) (tea.Model, tea.Cmd) {
	log.Printf("handleChatErr: %v", msg.err)
	m.addSystemMsg("error: " + msg.err.Error())
	return m, nil
}

func (m *model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key dismisses the QR overlay, except ctrl+c which still quits.
	if m.qrOverlay != "" && msg.String() != "ctrl+c" {
		m.qrOverlay = ""
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()

	case "tab":
		if len(m.acSuggestions) > 0 {
			m.acIndex = (m.acIndex + 1) % len(m.acSuggestions)
			return m, nil
		}

	case "shift+tab":
		if len(m.acSuggestions) > 0 {
			m.acIndex = (m.acIndex - 1 + len(m.acSuggestions)) % len(m.acSuggestions)
			return m, nil
		}

	case "esc":
		if len(m.acSuggestions) > 0 {
			m.acSuggestions = nil
			m.acIndex = 0
			m.acMention = false
			m.updateLayout()
			return m, nil
		}

	case "up":
		// Recall input history only from the first line, so cursor
		// movement inside a multiline draft still works.
		if m.input.Line() == 0 && len(m.inputHistory) > 0 {
			if m.historyIndex == -1 {
				m.historySaved = m.input.Value()
				m.historyIndex = len(m.inputHistory) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.input.SetValue(m.inputHistory[m.historyIndex])
			m.input.CursorEnd()
			m.syncInputHeight()
			return m, nil
		}

	case "down":
		if m.historyIndex != -1 && m.input.Line() == m.input.LineCount()-1 {
			if m.historyIndex < len(m.inputHistory)-1 {
				m.historyIndex++
				m.input.SetValue(m.inputHistory[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.input.SetValue(m.historySaved)
			}
			m.input.CursorEnd()
			m.syncInputHeight()
			return m, nil
		}

	case "pgup":
		m.viewport.ScrollUp(10)
		return m, nil

	case "pgdown":
		m.viewport.ScrollDown(10)
		return m, nil

	case "enter":
		if len(m.acSuggestions) > 0 {
			m.acceptSuggestion()
			m.updateLayout()
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.inputHistory = append(m.inputHistory, text)
		m.historyIndex = -1
		m.input.Reset()
		m.input.SetHeight(inputMinHeight)
		m.lastInputHeight = inputMinHeight
		m.acSuggestions = nil
		m.acIndex = 0
		m.acMention = false
		m.updateLayout()
		if strings.HasPrefix(text, "/") {
			return m, m.handleCommand(text)
		}
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return m, nil
		}
		return m, sendTextCmd(m.conv, text)
	}

	return m.handleInputUpdate(msg)
}

func (m *model) quit() tea.Cmd {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	return tea.Quit
}

func (m *model) handleInputUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Grow before the textarea processes the newline so the new line is
	// visible immediately.
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "alt+enter", "ctrl+j":
			lines := m.input.LineCount() + 1
			if lines <= inputMaxHeight && lines > m.lastInputHeight {
				m.input.SetHeight(lines)
				m.lastInputHeight = lines
				m.updateLayout()
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if _, ok := msg.(tea.KeyMsg); ok {
		m.updateSuggestions()
		m.syncInputHeight()
	}
	return m, cmd
}
