// ABOUTME: Entry point for the captivate-chat CLI
// ABOUTME: Runs a controller lifecycle against a local request file for development and debugging

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/captivate-ai/captivate-go/captivate"
	"github.com/captivate-ai/captivate-go/config"
	"github.com/captivate-ai/captivate-go/memstore"
	"github.com/captivate-ai/captivate-go/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                    _   _            _
  ___ __ _ _ __ | |_(_)_   ____ _| |_ ___
 / __/ _' | '_ \| __| \ \ / / _' | __/ _ \
| (_| (_| | |_) | |_| |\ V / (_| | ||  __/
 \___\__,_| .__/ \__|_| \_/ \__,_|\__\___|
          |_|
`

// getConfigPath returns the path to the CLI config file.
// Priority: CAPTIVATE_CONFIG env var > XDG_CONFIG_HOME/captivate/captivate.yaml > ~/.config/captivate/captivate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CAPTIVATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "captivate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "captivate", "captivate.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: captivate-chat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  send <request.json>    Run a controller lifecycle for an inbound request")
		fmt.Println("  history <session-id>   Print the stored chat history for a session")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSend(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: captivate-chat send <request.json> [--deliver]")
	}
	requestPath := args[0]
	doDeliver := len(args) > 1 && args[1] == "--deliver"

	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	data, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("reading request file: %w", err)
	}

	var req captivate.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing request file: %w", err)
	}

	opts := []captivate.Option{captivate.WithLogger(logger)}
	if cfg.Memory.Enabled {
		store, err := memstore.Open(cfg.Store)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()
		opts = append(opts, captivate.WithMemory(store))
	}

	ctrl, err := captivate.New(ctx, &req, opts...)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	logger.Info("request ingested",
		"channel", ctrl.Channel(),
		"has_livechat", ctrl.HasLivechat(),
		"incoming_actions", len(ctrl.IncomingActions()),
	)

	// Echo responder: enough to exercise the full lifecycle locally.
	reply := "(no user input)"
	if input := ctrl.UserInput(); input != "" {
		reply = "You said: " + input
	}
	if err := ctrl.SetResponse(ctx, []captivate.Message{captivate.NewTextMessage(reply)}); err != nil {
		return fmt.Errorf("setting response: %w", err)
	}

	out, err := ctrl.ResponseJSON()
	if err != nil {
		return err
	}
	fmt.Println(out)

	if doDeliver {
		body, err := ctrl.Deliver(ctx, cfg.Environment)
		if err != nil {
			return err
		}
		logger.Info("delivered", "environment", cfg.Environment, "response_bytes", len(body))
	}

	return nil
}

func runHistory(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: captivate-chat history <session-id>")
	}
	sessionID := args[0]

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := memstore.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	sess, err := session.Load(ctx, store, sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Printf("%s", sess.ConversationTitle)
	gray.Printf("  (%s)\n\n", sessionID)

	for _, turn := range sess.ChatHistory {
		switch turn.Role {
		case session.RoleUser:
			color.New(color.FgGreen).Printf("user  ")
		default:
			color.New(color.FgMagenta).Printf("bot   ")
		}
		gray.Printf("%s  ", turn.Timestamp)
		if s, ok := turn.Content.(string); ok {
			fmt.Println(s)
		} else {
			raw, _ := json.Marshal(turn.Content)
			fmt.Println(string(raw))
		}
	}

	return nil
}
