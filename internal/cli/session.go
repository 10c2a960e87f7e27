package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/db"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/spf13/cobra"
)

var askNew bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question in the current session",
	Long: `Ask a single question. The exchange is logged and the session is saved,
so a following "fsechat ask" extends the same conversation.

Examples:
  fsechat ask "What does ECM fault code 111 mean?"
  fsechat ask "Which builds use it?"
  fsechat ask --new "How do I calibrate the X15 injectors?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var rateCmd = &cobra.Command{
	Use:   "rate <up|down> [explanation...]",
	Short: "Rate the latest answer of the current session",
	Example: `  fsechat rate up
  fsechat rate down "wrong torque value"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the chat history; the next question starts a new conversation",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var switchCmd = &cobra.Command{
	Use:   "switch <backend>",
	Short: "Switch the LLM backend of the current session",
	Long: `Switch the LLM backend. The generation memory is wiped and the next
question starts a new conversation recorded with the new backend.

Backends: GPT-4 8k, claude, ollama, bedrock`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

func init() {
	askCmd.Flags().BoolVar(&askNew, "new", false, "start a new session")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		state *chat.TurnState
		err   error
	)
	if askNew {
		state, err = application.NewTurnState()
	} else {
		state, err = loadState(ctx, true)
	}
	if err != nil {
		return err
	}

	res, err := application.Chat.HandleTurn(ctx, state, strings.Join(args, " "))
	if errors.Is(err, db.ErrChainForked) {
		// Another process answered first; this state is stale.
		return fmt.Errorf("%w: ask again", err)
	}
	// Save even on failure: a logged question moves the chain tail.
	if saveErr := saveState(ctx, state); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Rendered)
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "session=%s message=%s new_conversation=%t\n",
			state.SessionID, res.AssistantMessageID, res.NewConversation)
	}
	return nil
}

func runRate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state, err := loadState(ctx, false)
	if err != nil {
		return err
	}
	if state.LatestAssistantMessageID == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to rate yet.")
		return nil
	}

	feedback := models.Feedback{Score: args[0]}
	if len(args) > 1 {
		text := strings.Join(args[1:], " ")
		feedback.Text = &text
	}
	if err := application.Chat.OnRatingSubmitted(ctx, state, feedback); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rated %s.\n", state.LatestAssistantMessageID)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state, err := loadState(ctx, false)
	if err != nil {
		return err
	}
	application.Chat.Reset(state)
	if err := saveState(ctx, state); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), state.History[0].Content)
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backend, err := llm.ParseBackend(args[0])
	if err != nil {
		return err
	}
	state, err := loadState(ctx, true)
	if err != nil {
		return err
	}
	if state.Backend == backend {
		fmt.Fprintf(cmd.OutOrStdout(), "Already using %s.\n", backend)
		return nil
	}

	application.Chat.SwitchBackend(state, backend)
	if err := saveState(ctx, state); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), state.History[len(state.History)-1].Content)
	return nil
}
