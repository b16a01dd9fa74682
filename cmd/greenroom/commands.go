package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/offstage-live/greenroom"
)

type sessionReadyMsg struct {
	session *greenroom.Session
}

type convReadyMsg struct {
	conv    greenroom.Conversation
	created bool
}

type historyLoadedMsg struct {
	msgs []greenroom.Message
}

type historyFailedMsg struct {
	err error
}

type streamStartedMsg struct {
	events <-chan greenroom.Message
	cancel func()
}

type liveMsg greenroom.Message

type sentMsg struct {
	msg *greenroom.Message
}

type membersLoadedMsg struct {
	lines    []string
	count    int
	announce bool
}

type membersSyncedMsg struct {
	attempted int
}

type senderResolvedMsg struct {
	inboxID string
	address string
}

type chatErrMsg struct {
	err error
}

func (e chatErrMsg) Error() string { return e.err.Error() }

// connectCmd establishes the messaging session for the wallet. The session
// layer handles its own dial timeout.
func connectCmd(sessions *greenroom.Sessions, wallet greenroom.Wallet) tea.Cmd {
	return func() tea.Msg {
		log.Printf("connectCmd: dialing as %s", wallet.Address())
		session, err := sessions.GetSession(context.Background(), wallet)
		if err != nil {
			return chatErrMsg{fmt.Errorf("connect: %w", err)}
		}
		return sessionReadyMsg{session: session}
	}
}

// locateCmd joins the configured channel, or creates one when no channel id
// is set.
func locateCmd(session *greenroom.Session, cfg Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if cfg.ChannelID != "" {
			conv := session.Locate(ctx, cfg.ChannelID)
			if conv == nil {
				return chatErrMsg{fmt.Errorf("channel %s not found on the network", shortID(cfg.ChannelID))}
			}
			return convReadyMsg{conv: conv}
		}

		conv, err := session.Create(ctx, cfg.ChannelName, cfg.PlaybackID)
		if err != nil {
			return chatErrMsg{fmt.Errorf("create channel: %w", err)}
		}
		return convReadyMsg{conv: conv, created: true}
	}
}

func historyCmd(conv greenroom.Conversation, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msgs, err := greenroom.LoadHistory(ctx, conv, limit)
		if err != nil {
			return historyFailedMsg{err: err}
		}
		log.Printf("historyCmd: loaded %d messages", len(msgs))
		return historyLoadedMsg{msgs: msgs}
	}
}

// streamCmd opens the live feed for the channel. Messages are pushed onto a
// buffered channel that waitForLiveMsg drains one at a time.
func streamCmd(conv greenroom.Conversation) tea.Cmd {
	return func() tea.Msg {
		events := make(chan greenroom.Message, 64)
		cancel, err := greenroom.Stream(conv, func(msg greenroom.Message) {
			events <- msg
		})
		if err != nil {
			return chatErrMsg{fmt.Errorf("stream: %w", err)}
		}
		return streamStartedMsg{events: events, cancel: cancel}
	}
}

func waitForLiveMsg(events <-chan greenroom.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return liveMsg(msg)
	}
}

func sendTextCmd(conv greenroom.Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg, err := greenroom.SendText(ctx, conv, text)
		if err != nil {
			return chatErrMsg{fmt.Errorf("send: %w", err)}
		}
		return sentMsg{msg: msg}
	}
}

func sendImageCmd(conv greenroom.Conversation, path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return chatErrMsg{fmt.Errorf("read image: %w", err)}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msg, err := greenroom.SendImage(ctx, conv, greenroom.ImageFile{
			Filename: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			return chatErrMsg{fmt.Errorf("send image: %w", err)}
		}
		return sentMsg{msg: msg}
	}
}

func syncMembersCmd(session *greenroom.Session, conv greenroom.Conversation, addresses []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		attempted := session.SyncMembers(ctx, conv, addresses)
		return membersSyncedMsg{attempted: attempted}
	}
}

// membersCmd lists the channel roster and resolves member inbox ids back to
// wallet addresses where the network knows them.
func membersCmd(session *greenroom.Session, conv greenroom.Conversation, announce bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		lister, ok := conv.(greenroom.MemberLister)
		if !ok {
			return membersLoadedMsg{announce: announce}
		}
		members, err := lister.Members(ctx)
		if err != nil {
			return chatErrMsg{fmt.Errorf("members: %w", err)}
		}

		inboxIDs := make([]string, 0, len(members))
		for _, mem := range members {
			inboxIDs = append(inboxIDs, mem.InboxID)
		}
		addrs := session.ResolveAddresses(ctx, inboxIDs)

		lines := make([]string, 0, len(members))
		for _, id := range inboxIDs {
			if addr := addrs[id]; addr != "" {
				lines = append(lines, fmt.Sprintf("%s (%s)", addr, shortID(id)))
			} else {
				lines = append(lines, shortID(id))
			}
		}
		sort.Strings(lines)
		return membersLoadedMsg{lines: lines, count: len(members), announce: announce}
	}
}

func resolveSenderCmd(session *greenroom.Session, inboxID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		addrs := session.ResolveAddresses(ctx, []string{inboxID})
		return senderResolvedMsg{inboxID: inboxID, address: addrs[inboxID]}
	}
}

// handleCommand dispatches a "/" command from the input line.
func (m *model) handleCommand(text string) tea.Cmd {
	parts := strings.Fields(text)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "/members":
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return nil
		}
		return membersCmd(m.session, m.conv, true)

	case "/invite":
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return nil
		}
		if len(args) == 0 {
			m.addSystemMsg("usage: /invite <wallet-address> [more addresses]")
			return nil
		}
		for _, addr := range args {
			if !greenroom.ValidAddress(addr) {
				m.addSystemMsg("not a wallet address: " + addr)
				return nil
			}
		}
		m.addSystemMsg(fmt.Sprintf("adding %d viewers to the channel", len(args)))
		return syncMembersCmd(m.session, m.conv, args)

	case "/image":
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return nil
		}
		if len(args) == 0 {
			m.addSystemMsg("usage: /image <path-to-image>")
			return nil
		}
		return sendImageCmd(m.conv, expandHome(strings.Join(args, " ")))

	case "/history":
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return nil
		}
		limit := m.cfg.HistoryLimit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				m.addSystemMsg("usage: /history [n]")
				return nil
			}
			limit = n
		}
		m.addSystemMsg(fmt.Sprintf("reloading last %d messages...", limit))
		return historyCmd(m.conv, limit)

	case "/share":
		if m.conv == nil {
			m.addSystemMsg("not connected to a channel yet")
			return nil
		}
		m.qrOverlay = renderQR("#"+m.channelTitle(), m.conv.ID())
		return nil

	case "/me":
		m.qrOverlay = renderQR("Your wallet:", m.wallet.Address())
		return nil

	case "/help":
		m.addSystemMsg("/members — list channel members")
		m.addSystemMsg("/invite <address>... — add viewers to the channel by wallet address")
		m.addSystemMsg("/image <path> — send an image attachment")
		m.addSystemMsg("/history [n] — reload the last n messages")
		m.addSystemMsg("/share — show a QR code for this channel")
		m.addSystemMsg("/me — show a QR code of your wallet address")
		m.addSystemMsg("/quit — exit")
		return nil

	case "/quit":
		return m.quit()

	default:
		m.addSystemMsg("unknown command: " + cmd)
		return nil
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
