// Package cli provides the command-line interface for fsechat.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/fsechat/internal/app"
	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/config"
	"github.com/raphaelgruber/fsechat/internal/session"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	sessionID string
	showStats bool

	// Global config and wired application
	cfg         config.Config
	application *app.App
	closeLog    func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fsechat",
	Short: "Field service engineer chat with a conversation log graph",
	Long: `fsechat answers field service engineering questions with a choice of LLM
backends and logs every exchange as a chain of messages in a SurrealDB graph.

Sessions persist between invocations when FSECHAT_SESSION_STORE=redis, so
one-shot commands (ask, rate, reset, switch) continue the current session.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip connections for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		var logger *slog.Logger
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		var err error
		application, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if showStats {
				printStats(cmd.OutOrStdout(), application.Metrics.Snapshot())
			}
			if err := application.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close connections: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and runs it until
// completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "session id (default: the current session)")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print timing statistics on exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(docsCmd)
}

// loadState resolves the session to act on: --session, else the current
// session. With create set, a missing session is started fresh.
func loadState(ctx context.Context, create bool) (*chat.TurnState, error) {
	id := sessionID
	if id == "" {
		current, err := application.Sessions.Current(ctx)
		switch {
		case errors.Is(err, session.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			id = current
		}
	}

	if id != "" {
		state, err := application.Sessions.Load(ctx, id)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, session.ErrNotFound) || !create || sessionID != "" {
			return nil, err
		}
	}
	if !create {
		return nil, fmt.Errorf("no current session, ask a question first: %w", session.ErrNotFound)
	}
	return application.NewTurnState()
}

// saveState persists state and makes it the current session.
func saveState(ctx context.Context, state *chat.TurnState) error {
	if err := application.Sessions.Save(ctx, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := application.Sessions.SetCurrent(ctx, state.SessionID); err != nil {
		return fmt.Errorf("set current session: %w", err)
	}
	return nil
}
