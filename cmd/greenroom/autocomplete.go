package main

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var consoleCommands = []string{
	"/help",
	"/members",
	"/invite",
	"/image",
	"/history",
	"/share",
	"/me",
	"/quit",
}

// updateSuggestions recomputes the completion strip for the current input.
// Mention completion wins when the last word starts with @; otherwise "/"
// inputs complete commands and their arguments.
func (m *model) updateSuggestions() {
	text := m.input.Value()

	if suggestions := m.mentionSuggestions(text); suggestions != nil {
		m.acMention = true
		m.setSuggestions(suggestions)
		return
	}
	m.acMention = false

	var suggestions []string
	if strings.HasPrefix(text, "/") {
		tokens := strings.Fields(text)
		trailingSpace := strings.HasSuffix(text, " ")
		switch {
		case len(tokens) == 1 && !trailingSpace:
			for _, c := range consoleCommands {
				if strings.HasPrefix(c, text) && c != text {
					suggestions = append(suggestions, c)
				}
			}
		case tokens[0] == "/invite":
			prefix := ""
			if !trailingSpace {
				prefix = tokens[len(tokens)-1]
			}
			for _, addr := range m.knownAddresses() {
				if strings.HasPrefix(addr, prefix) && addr != prefix {
					suggestions = append(suggestions, addr)
				}
			}
		}
	}
	m.setSuggestions(suggestions)
}

func (m *model) setSuggestions(suggestions []string) {
	if slicesEqual(suggestions, m.acSuggestions) {
		return
	}
	hadAny := len(m.acSuggestions) > 0
	m.acSuggestions = suggestions
	m.acIndex = 0
	if hadAny != (len(suggestions) > 0) {
		m.updateLayout()
	}
}

// acceptSuggestion replaces the word being completed with the selected
// suggestion and appends a space.
func (m *model) acceptSuggestion() {
	if len(m.acSuggestions) == 0 {
		return
	}
	chosen := m.acSuggestions[m.acIndex]
	text := m.input.Value()

	switch {
	case m.acMention:
		if idx := strings.LastIndex(text, "@"); idx >= 0 {
			m.input.SetValue(text[:idx] + chosen + " ")
		}
	case !strings.Contains(strings.TrimSpace(text), " "):
		m.input.SetValue(chosen + " ")
	default:
		idx := strings.LastIndex(text, " ")
		m.input.SetValue(text[:idx+1] + chosen + " ")
	}
	m.input.CursorEnd()
	m.acSuggestions = nil
	m.acIndex = 0
	m.acMention = false
}

// viewAutocomplete renders the suggestion strip. It shows a window around
// the selected entry, growing both ways while it fits, with ◂/▸ markers
// when entries remain off-screen.
func (m *model) viewAutocomplete() string {
	if len(m.acSuggestions) == 0 {
		return ""
	}

	rendered := make([]string, len(m.acSuggestions))
	for i, s := range m.acSuggestions {
		if i == m.acIndex {
			rendered[i] = acSelectedStyle.Render(s)
		} else {
			rendered[i] = acSuggestionStyle.Render(s)
		}
	}

	available := m.width - 4
	lo, hi := m.acIndex, m.acIndex+1
	used := lipgloss.Width(rendered[m.acIndex])
	for {
		grew := false
		if hi < len(rendered) && used+lipgloss.Width(rendered[hi]) <= available {
			used += lipgloss.Width(rendered[hi])
			hi++
			grew = true
		}
		if lo > 0 && used+lipgloss.Width(rendered[lo-1]) <= available {
			used += lipgloss.Width(rendered[lo-1])
			lo--
			grew = true
		}
		if !grew {
			break
		}
	}

	var sb strings.Builder
	if lo > 0 {
		sb.WriteString("◂")
	} else {
		sb.WriteString(" ")
	}
	sb.WriteString(strings.Join(rendered[lo:hi], ""))
	if hi < len(rendered) {
		sb.WriteString("▸")
	}
	return sb.String()
}

// mentionSuggestions returns @name completions when the last word of the
// input is an @-prefix. Candidates are recent chat authors, newest first.
// A nil return means the input is not in a mention position.
func (m *model) mentionSuggestions(text string) []string {
	if text == "" {
		return nil
	}
	idx := strings.LastIndexAny(text, " \n")
	word := text[idx+1:]
	if !strings.HasPrefix(word, "@") {
		return nil
	}
	prefix := strings.ToLower(word[1:])

	var suggestions []string
	seen := make(map[string]bool)
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Sender == "" || e.Mine {
			continue
		}
		name := m.displayName(e)
		if seen[name] {
			continue
		}
		seen[name] = true
		if prefix == "" || strings.HasPrefix(strings.ToLower(name), prefix) {
			suggestions = append(suggestions, "@"+name)
		}
	}
	return suggestions
}

// knownAddresses lists wallet addresses learned from reverse resolution.
func (m *model) knownAddresses() []string {
	addrs := make([]string, 0, len(m.names))
	for _, addr := range m.names {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
