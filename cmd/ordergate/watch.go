package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ordergate/internal/tui/watch"
)

const apiKeyEnv = "ORDERGATE_API_KEY"

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Read api.listen and api.auth.api_key from this config")
	apiURL := fs.String("api-url", "", "Desk API URL (default http://<api.listen> or http://localhost:8080)")
	apiKey := fs.String("api-key", os.Getenv(apiKeyEnv), "API bearer token with events:ro")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	url, key := watchTarget(*configPath, *apiURL, *apiKey)
	if key == "" {
		fmt.Fprintf(os.Stderr, "Error: API key required. Use --api-key or %s.\n", apiKeyEnv)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(watch.New(ctx, url, key))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// watchTarget fills in whatever the flags left empty from the config, when
// one can be loaded.
func watchTarget(configPath, url, key string) (string, string) {
	if url != "" && key != "" {
		return url, key
	}
	if cfg, err := loadConfig(configPath); err == nil {
		if url == "" && cfg.API.Listen != "" {
			url = "http://" + cfg.API.Listen
		}
		if key == "" {
			key = cfg.API.Auth.APIKey
		}
	}
	if url == "" {
		url = "http://localhost:8080"
	}
	return url, key
}
