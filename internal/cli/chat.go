package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var chatResume bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat. Every question and answer is logged to the
conversation graph; type /help inside the chat for commands.

Examples:
  fsechat chat
  fsechat chat --resume
  fsechat chat --session s-2f1c... --stats`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatResume, "resume", false, "continue the current session instead of starting a new one")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state, err := application.NewTurnState()
	if err != nil {
		return err
	}
	if chatResume || sessionID != "" {
		if state, err = loadState(ctx, false); err != nil {
			return err
		}
	}
	defer application.Chat.EndSession(state.SessionID)

	r := &repl{
		engine:  application.Chat,
		store:   application.Sessions,
		history: application.DB,
		out:     cmd.OutOrStdout(),
		theme:   defaultTheme,
		width:   terminalWidth(),
		prompt:  interactive(),
	}
	if err := r.run(ctx, state, cmd.InOrStdin()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Session "+state.SessionID+" saved."))
	if !showStats {
		printStats(cmd.OutOrStdout(), application.Metrics.Snapshot())
	}
	return nil
}
