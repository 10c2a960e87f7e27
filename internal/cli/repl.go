package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/fsechat/internal/chat"
	"github.com/raphaelgruber/fsechat/internal/llm"
	"github.com/raphaelgruber/fsechat/internal/models"
	"github.com/raphaelgruber/fsechat/internal/session"
)

// engine is the part of *chat.Orchestrator the CLI drives.
type engine interface {
	HandleTurn(ctx context.Context, state *chat.TurnState, question string) (*chat.TurnResult, error)
	OnRatingSubmitted(ctx context.Context, state *chat.TurnState, feedback models.Feedback) error
	SwitchBackend(state *chat.TurnState, backend llm.Backend)
	Reset(state *chat.TurnState)
}

const replHelp = `Commands:
  /rate up|down [explanation]  rate the latest answer
  /reset                       clear the chat history
  /switch <backend>            use another LLM backend
  /history                     show the logged conversations of this session
  /help                        show this help
  /quit                        leave the chat`

// repl runs an interactive chat session.
type repl struct {
	engine  engine
	store   session.Store
	history chat.HistoryReader
	out     io.Writer
	theme   Theme
	width   int
	prompt  bool
}

// run reads questions from in until EOF, /quit or ctx is done.
func (r *repl) run(ctx context.Context, state *chat.TurnState, in io.Reader) error {
	r.printEntry(state.History[len(state.History)-1])
	fmt.Fprintln(r.out, r.theme.hintStyle().Render("Type /help for commands."))

	scanner := bufio.NewScanner(in)
	for {
		if r.prompt {
			fmt.Fprint(r.out, r.theme.userStyle().Render("> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if r.handle(ctx, state, line) {
			return nil
		}
		if err := r.store.Save(ctx, state); err != nil {
			r.printError(err)
		} else if err := r.store.SetCurrent(ctx, state.SessionID); err != nil {
			r.printError(err)
		}
	}
}

// handle processes one input line and reports whether the session ends.
func (r *repl) handle(ctx context.Context, state *chat.TurnState, line string) bool {
	if !strings.HasPrefix(line, "/") {
		res, err := r.engine.HandleTurn(ctx, state, line)
		if err != nil {
			r.printError(err)
			return false
		}
		r.printAnswer(res)
		return false
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true
	case "help":
		fmt.Fprintln(r.out, r.theme.hintStyle().Render(replHelp))
	case "reset":
		r.engine.Reset(state)
		r.printEntry(state.History[0])
	case "switch":
		backend, err := llm.ParseBackend(rest)
		if err != nil {
			r.printError(err)
			return false
		}
		if backend == state.Backend {
			fmt.Fprintln(r.out, r.theme.hintStyle().Render("Already using "+string(backend)))
			return false
		}
		r.engine.SwitchBackend(state, backend)
		r.printEntry(state.History[len(state.History)-1])
	case "rate":
		score, text, _ := strings.Cut(rest, " ")
		feedback := models.Feedback{Score: score}
		if text = strings.TrimSpace(text); text != "" {
			feedback.Text = &text
		}
		if state.LatestAssistantMessageID == "" {
			fmt.Fprintln(r.out, r.theme.hintStyle().Render("Nothing to rate yet."))
			return false
		}
		if err := r.engine.OnRatingSubmitted(ctx, state, feedback); err != nil {
			r.printError(err)
			return false
		}
		fmt.Fprintln(r.out, r.theme.hintStyle().Render("Thanks for the feedback."))
	case "history":
		logs, err := chat.LoadHistory(ctx, r.history, state.SessionID)
		if err != nil {
			r.printError(err)
			return false
		}
		renderHistory(r.out, r.theme, r.width, logs)
	default:
		r.printError(errors.New("unknown command /" + cmd + ", type /help"))
	}
	return false
}

func (r *repl) printAnswer(res *chat.TurnResult) {
	fmt.Fprintln(r.out, r.theme.assistantStyle().Render("FSE chat"))
	fmt.Fprintln(r.out, bodyStyle(r.width).Render(res.Answer))
	timing := fmt.Sprintf("prompt %.2fs, answer %.2fs", res.PromptDuration.Seconds(), res.GenerationDuration.Seconds())
	if n := len(res.Documents); n > 0 {
		timing += fmt.Sprintf(", %d context documents", n)
	}
	fmt.Fprintln(r.out, r.theme.hintStyle().Render("  "+timing))
}

func (r *repl) printEntry(e chat.HistoryEntry) {
	style := r.theme.assistantStyle()
	if e.Notice {
		style = r.theme.noticeStyle()
	}
	fmt.Fprintln(r.out, style.Render(e.Content))
}

func (r *repl) printError(err error) {
	fmt.Fprintln(r.out, r.theme.errorStyle().Render("Error: "+err.Error()))
}
