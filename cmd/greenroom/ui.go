package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal/v3"
	"github.com/muesli/termenv"
)

var (
	colorPrimary   = lipgloss.Color("#7B68EE")
	colorSecondary = lipgloss.Color("#5B5682")
	colorMuted     = lipgloss.Color("#636363")
	colorHighlight = lipgloss.Color("#E0DAFF")
	colorStatusBg  = lipgloss.Color("#24283B")
	colorWhite     = lipgloss.Color("#C0CAF5")
	colorGreen     = lipgloss.Color("#9ECE6A")
)

const (
	inputMinHeight = 1
	inputMaxHeight = 6
)

// Per-sender name palettes. authorColors is switched to match the detected
// terminal background before the TUI starts.
var (
	authorColorsDark = []lipgloss.Color{
		"#F7768E", "#9ECE6A", "#E0AF68", "#7AA2F7",
		"#BB9AF7", "#7DCFFF", "#FF9E64", "#73DACA",
	}
	authorColorsLight = []lipgloss.Color{
		"#8C4351", "#33635C", "#8F5E15", "#34548A",
		"#5A4A78", "#0F4B6E", "#965027", "#166775",
	}
	authorColors = authorColorsDark
)

// colorForSender picks a stable palette color from the leading byte of a
// sender's inbox id.
func colorForSender(id string) lipgloss.Color {
	if len(id) < 2 {
		return authorColors[0]
	}
	n, err := strconv.ParseUint(id[:2], 16, 8)
	if err != nil {
		return authorColors[0]
	}
	return authorColors[int(n)%len(authorColors)]
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)

	chatOwnAuthorStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	chatTimestampStyle = lipgloss.NewStyle().Foreground(colorMuted)
	chatSystemStyle    = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	statusBarStyle       = lipgloss.NewStyle().Background(colorStatusBg).Foreground(colorWhite).Padding(0, 1)
	statusConnectedStyle = lipgloss.NewStyle().Foreground(colorGreen)

	acSuggestionStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	acSelectedStyle   = lipgloss.NewStyle().Foreground(colorHighlight).Background(colorSecondary).Padding(0, 1)

	qrTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
)

// detectGlamourStyle returns the glamour style matching the terminal
// background. Must be called before the TUI starts; the background-color
// query needs normal stdio.
func detectGlamourStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// newMarkdownRenderer builds a glamour renderer with wrapping disabled; the
// viewport wraps to the prefix-aware width itself. Returns nil on error, in
// which case messages render as plain text.
func newMarkdownRenderer(style string) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content through r, falling back to the raw text
// when the renderer is missing or fails.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// renderQR renders a QR code with a title line above it.
func renderQR(title, content string) string {
	var buf strings.Builder
	buf.WriteString(qrTitleStyle.Render(title))
	buf.WriteString("\n\n")
	qrterminal.GenerateWithConfig(content, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         &buf,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		QuietZone:      1,
	})
	return buf.String()
}
