package main

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/offstage-live/greenroom"
)

// chatEntry is one line of the chat view: a network message or a local
// system notice.
type chatEntry struct {
	ID      string
	Author  string // "system" for local notices, resolved on render otherwise
	Sender  string // sender inbox id, empty for system notices
	Content string
	SentAt  time.Time
	Mine    bool
}

type model struct {
	cfg      Config
	wallet   *DevWallet
	sessions *greenroom.Sessions
	mdRender *glamour.TermRenderer

	session *greenroom.Session
	conv    greenroom.Conversation

	entries     []chatEntry
	seen        map[string]bool   // entry keys already displayed
	sentEchoes  map[string]bool   // own sent content awaiting network redelivery
	names       map[string]string // sender inbox id -> wallet address
	namePending map[string]bool
	memberCount int

	events       <-chan greenroom.Message
	streamCancel func()
	live         bool

	viewport viewport.Model
	input    textarea.Model

	width           int
	height          int
	lastInputHeight int
	qrOverlay       string

	acSuggestions []string
	acIndex       int
	acMention     bool

	inputHistory []string
	historyIndex int // -1 = editing a new line
	historySaved string
}

func newModel(cfg Config, wallet *DevWallet, sessions *greenroom.Sessions, mdRender *glamour.TermRenderer) model {
	input := textarea.New()
	input.Placeholder = "Type a message... (/help for commands)"
	input.Prompt = "> "
	input.CharLimit = 2000
	input.SetHeight(inputMinHeight)
	input.MaxHeight = inputMaxHeight
	input.ShowLineNumbers = false
	input.FocusedStyle.CursorLine = lipgloss.NewStyle()
	input.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	input.Focus()

	return model{
		cfg:             cfg,
		wallet:          wallet,
		sessions:        sessions,
		mdRender:        mdRender,
		seen:            make(map[string]bool),
		sentEchoes:      make(map[string]bool),
		names:           make(map[string]string),
		namePending:     make(map[string]bool),
		viewport:        viewport.New(0, 0),
		input:           input,
		lastInputHeight: inputMinHeight,
		historyIndex:    -1,
	}
}

func (m *model) Init() tea.Cmd {
	m.addSystemMsg("greenroom console — /help for commands")
	m.addSystemMsg("connecting as " + shortAddr(m.wallet.Address()) + "...")
	return tea.Batch(textarea.Blink, connectCmd(m.sessions, m.wallet))
}

// entryKey collapses redeliveries of the same message across history, the
// live feed, and local echoes.
func entryKey(e chatEntry) string {
	return e.Sender + "\t" + e.Content + "\t" + strconv.FormatInt(e.SentAt.Unix(), 10)
}

// entryFromMessage converts a network message for display. Local echoes
// carry the placeholder self sender; both self shapes map to Mine.
func (m *model) entryFromMessage(msg greenroom.Message) chatEntry {
	sender := msg.SenderInboxID
	mine := sender == greenroom.SelfSender
	if m.session != nil {
		self := m.session.Client.InboxID()
		if mine {
			sender = self
		} else if sender == self {
			mine = true
		}
	}
	return chatEntry{
		ID:      msg.ID,
		Sender:  sender,
		Content: msg.Content,
		SentAt:  msg.SentAt,
		Mine:    mine,
	}
}

// addSystemMsg appends a local-only notice into the chat view.
func (m *model) addSystemMsg(text string) {
	m.entries = appendEntry(m.entries, chatEntry{
		Author:  "system",
		Content: text,
		SentAt:  time.Now(),
	}, m.cfg.MaxMessages)
	m.updateViewport()
}

// appendChat adds a network-delivered or sent message to the view and the
// local transcript.
func (m *model) appendChat(e chatEntry) {
	m.entries = appendEntry(m.entries, e, m.cfg.MaxMessages)
	if m.cfg.LoggingEnabled() && m.conv != nil {
		appendTranscript(m.cfg.LogDir, m.conv.ID(), e, m.displayName(e))
	}
	m.updateViewport()
}

// appendEntry inserts by send time so late redeliveries land in order, and
// caps the window at maxEntries. Equal timestamps keep insertion order.
func appendEntry(entries []chatEntry, e chatEntry, maxEntries int) []chatEntry {
	idx := len(entries)
	for idx > 0 && entries[idx-1].SentAt.After(e.SentAt) {
		idx--
	}
	entries = append(entries, chatEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = e
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return entries
}

// displayName resolves the name shown for an entry: system notices and own
// messages have fixed names, everyone else is their wallet address once
// reverse resolution has answered, their inbox id until then.
func (m *model) displayName(e chatEntry) string {
	if e.Author != "" {
		return e.Author
	}
	if e.Mine {
		return "you"
	}
	if addr, ok := m.names[e.Sender]; ok {
		return shortAddr(addr)
	}
	return shortID(e.Sender)
}

// maybeResolveSender returns a resolveSenderCmd unless the sender is known,
// already being resolved, or ourselves.
func (m *model) maybeResolveSender(sender string) tea.Cmd {
	if sender == "" || m.session == nil {
		return nil
	}
	if sender == m.session.Client.InboxID() {
		return nil
	}
	if _, ok := m.names[sender]; ok {
		return nil
	}
	if m.namePending[sender] {
		return nil
	}
	m.namePending[sender] = true
	return resolveSenderCmd(m.session, sender)
}

// syncInputHeight resizes the textarea to match its content and re-layouts
// if needed. Handles shrinking (e.g. backspace joining lines) and any growth
// not caught by pre-grow.
func (m *model) syncInputHeight() {
	lines := m.input.LineCount()
	if lines < inputMinHeight {
		lines = inputMinHeight
	}
	if lines > inputMaxHeight {
		lines = inputMaxHeight
	}
	if lines != m.lastInputHeight {
		m.input.SetHeight(lines)
		m.lastInputHeight = lines
		m.updateLayout()
	}
}

// shortID returns the first 8 characters of an inbox or conversation id.
func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// shortAddr abbreviates a wallet address for display, keeping the prefix and
// the last four characters.
func shortAddr(addr string) string {
	if len(addr) > 13 {
		return addr[:8] + "…" + addr[len(addr)-4:]
	}
	return addr
}
