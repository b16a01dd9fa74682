package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/offstage-live/greenroom"
	"github.com/offstage-live/greenroom/relaynet"
)

func main() {
	configFlag := flag.String("config", "", "path to config file")
	debugFlag := flag.Bool("debug", false, "log debug output to debug.log")
	flag.Parse()

	if *debugFlag {
		f, err := tea.LogToFile("debug.log", "greenroom")
		if err != nil {
			fmt.Printf("Failed to open debug log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := LoadConfig(configPath(*configFlag))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ChannelID == "" && cfg.ChannelName == "" {
		fmt.Println("No channel configured: set channel_id to join an existing channel, or channel_name and playback_id to create one.")
		os.Exit(1)
	}

	wallet, err := LoadWallet(cfg.WalletKeyFile)
	if err != nil {
		fmt.Printf("Failed to load wallet: %v\n", err)
		os.Exit(1)
	}

	// Create the markdown renderer before the TUI starts so the terminal
	// background-color query completes while stdio is still normal.
	mdStyle := detectGlamourStyle()
	if mdStyle == "light" {
		authorColors = authorColorsLight
	}
	mdRender := newMarkdownRenderer(mdStyle)

	sessions := greenroom.NewSessions(relaynet.NewDialer(cfg.Relays))

	m := newModel(cfg, wallet, sessions, mdRender)
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
