package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/headroom/headroom/internal/tui/app"
	"github.com/headroom/headroom/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8090/ws", "WebSocket URL of headroomd")
	token := flag.String("token", os.Getenv("HEADROOM_AUTH_TOKEN"), "Auth token (if headroomd requires it)")
	logPath := flag.String("log", "", "Write client logs to this file")
	flag.Parse()

	// The alternate screen owns the terminal; logs go to a file or nowhere.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "headroom-tui")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	ws := client.NewWSClient(*wsURL, *token)
	httpClient := client.NewHTTPClient(client.HTTPBase(*wsURL), *token)

	m := app.New(ws, httpClient)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
