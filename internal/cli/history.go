package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show the logged conversations of a session",
	Long: `Show every conversation logged for a session, walking each message chain
from its first message. Ratings are shown next to the answers they rate.

Without an argument the current session is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id := sessionID
	if len(args) == 1 {
		id = args[0]
	}
	if id == "" {
		state, err := loadState(ctx, false)
		if err != nil {
			return err
		}
		id = state.SessionID
	}

	logs, err := chat.LoadHistory(ctx, application.DB, id)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(logs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No conversations logged for %s.\n", id)
		return nil
	}
	renderHistory(cmd.OutOrStdout(), defaultTheme, terminalWidth(), logs)
	return nil
}

// renderHistory prints conversations oldest first, one block per message.
func renderHistory(w io.Writer, t Theme, width int, logs []chat.ConversationLog) {
	for i, l := range logs {
		c := l.Conversation
		header := fmt.Sprintf("Conversation %d: %s (%s, temperature %.2f, %s)",
			i+1, l.ID, c.LLMType, c.Temperature, c.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintln(w, t.hintStyle().Render(header))

		for _, m := range l.Messages {
			label := t.userStyle().Render("You")
			if m.IsAssistant() {
				label = t.assistantStyle().Render("FSE chat")
			}
			if m.Rating != nil {
				label += " " + ratingBadge(t, *m.Rating, m.RatingExplanation)
			}
			fmt.Fprintln(w, label)
			fmt.Fprintln(w, bodyStyle(width).Render(m.Content))
		}
		fmt.Fprintln(w)
	}
}

func ratingBadge(t Theme, r models.Rating, explanation *string) string {
	badge := "[rated good]"
	style := t.assistantStyle()
	if r == models.RatingBad {
		badge = "[rated bad]"
		style = t.errorStyle()
	}
	if explanation != nil {
		badge = fmt.Sprintf("[rated %s: %s]", r, *explanation)
	}
	return style.Render(badge)
}
