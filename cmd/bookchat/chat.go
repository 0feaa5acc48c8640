package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bookchat-dev/bookchat"
	internalobs "github.com/bookchat-dev/bookchat/internal/observability"
	"github.com/bookchat-dev/bookchat/internal/ui"
	"github.com/bookchat-dev/bookchat/pkg/client"
	"github.com/bookchat-dev/bookchat/pkg/observability"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Opens the live event stream, replays stored history, and reads messages\nfrom the terminal. Slash commands: /clear, /saved, /save <id>, /quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
}

func runChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := internalobs.InitFromEnv(logger); err != nil {
		logger.Warn().Err(err).Msg("tracing init failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = internalobs.Shutdown(ctx)
	}()

	view := ui.NewTerminalView(os.Stdout)
	notifier := ui.NewTerminalNotifier(os.Stdout)

	app, err := bookchat.New(cfg, view, notifier, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Metrics.Enabled {
		startMetricsServer(app, cfg.Metrics.Port, logger)
	}
	if app.Janitor != nil {
		if err := app.Janitor.Start(); err != nil {
			logger.Warn().Err(err).Msg("janitor start failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Chat.SeedHistory(ctx, cfg.HistoryLimit); err != nil {
		logger.Warn().Err(err).Msg("history load failed")
	}
	if err := app.Books.Sync(ctx); err != nil {
		logger.Warn().Err(err).Msg("saved books sync failed")
	}

	app.Chat.Open(ctx)

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	fmt.Printf("Session %s. Type a message, or /quit to exit.\n", app.SessionID)

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			// io.EOF on Ctrl-D
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if done := runSlashCommand(ctx, app, notifier, input); done {
				return nil
			}
			continue
		}

		if err := app.Chat.Send(ctx, input); err != nil {
			if errors.Is(err, client.ErrThrottled) {
				notifier.Error("Slow down: sending too fast.")
				continue
			}
			notifier.Error(err.Error())
		}
	}
}

// runSlashCommand handles REPL commands. Returns true when the session
// should end.
func runSlashCommand(ctx context.Context, app *bookchat.App, notifier client.Notifier, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/clear":
		if err := app.Chat.Clear(ctx); err == nil {
			notifier.Info("Conversation cleared.")
		}
	case "/saved":
		ids := app.Books.All()
		if len(ids) == 0 {
			notifier.Info("No saved books yet.")
			break
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		notifier.Info("Saved books: " + strings.Join(parts, ", "))
	case "/save":
		if len(fields) != 2 {
			notifier.Error("Usage: /save <book-id>")
			break
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			notifier.Error("Book id must be a number.")
			break
		}
		result, err := app.Books.Toggle(ctx, id)
		if err != nil {
			notifier.Error("Save failed: " + err.Error())
			break
		}
		notifier.Info(result.Message)
	default:
		notifier.Error("Unknown command: " + fields[0])
	}
	return false
}

func startMetricsServer(app *bookchat.App, port int, logger zerolog.Logger) {
	observability.InitMetrics()
	hc := observability.InitHealthChecker()
	hc.RegisterCheck(observability.PingCheck())
	hc.RegisterCheck(observability.StoreCheck(app.Store.Ping))
	hc.RegisterCheck(observability.BackendCheck(func(ctx context.Context) error {
		_, err := app.API.SavedBooks(ctx)
		return err
	}))

	srv := observability.NewServer(port)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
