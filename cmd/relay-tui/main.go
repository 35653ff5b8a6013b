package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/avgrelay/relay/internal/tui/app"
	"github.com/avgrelay/relay/internal/tui/client"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	base := flag.String("url", "ws://127.0.0.1:8080", "Base WebSocket URL of the relay")
	listenPath := flag.String("listen-path", "/listen", "Listener route")
	sendPath := flag.String("send-path", "/send", "Sender route")
	sending := flag.Bool("send", false, "Also open a sender stream and accept values")
	logPath := flag.String("log", "", "Write client logs to this file")
	flag.Parse()

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	listenURL, err := routeURL(*base, *listenPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	listen := client.NewStreamClient(listenURL, client.StreamListen)

	var sender *client.StreamClient
	if *sending {
		sendURL, err := routeURL(*base, *sendPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sender = client.NewStreamClient(sendURL, client.StreamSend)
	}

	m := app.New(listen, sender)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// routeURL joins base and path, converting http(s) schemes to ws(s).
func routeURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
