package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/lexchat/cmd/lexchat/cliconfig"
	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/gemini"
	"github.com/papercomputeco/lexchat/pkg/logger"
	"github.com/papercomputeco/lexchat/pkg/session"
)

const askLongDesc string = `Ask a single legal question and stream the answer to stdout.

The question is taken from the argument, or read from stdin when
stdin is not a terminal. Nothing is remembered between invocations.

Examples:
  lexchat ask "É crime dirigir sem habilitação?"
  echo "Posso ser preso por dívida?" | lexchat ask
  lexchat ask --model gemini-2.0-flash "O que é legítima defesa?"`

const askShortDesc string = "Ask one question"

var errNoQuestion = errors.New("no question given")

type askCommander struct {
	opts cliconfig.Options
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmder.opts.AddFlags(cmd)

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	question, err := readQuestion(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := c.opts.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Debug, cmd.ErrOrStderr())
	defer log.Sync()

	conv := chat.NewConversation(session.NewStore(), gemini.NewGenerator(cfg.GeminiConfig(), log), log)

	w := cmd.OutOrStdout()
	out := termenv.NewOutput(w)
	fmt.Fprintln(w, out.String("Assistente:").Bold().Foreground(out.Color("170")))

	if _, err := conv.Ask(ctx, question, w); err != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, out.String(chat.FallbackReply).Foreground(out.Color("203")))
		return fmt.Errorf("could not answer question: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

func readQuestion(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		if q := strings.TrimSpace(args[0]); q != "" {
			return q, nil
		}
		return "", errNoQuestion
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errNoQuestion
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("could not read question from stdin: %w", err)
	}
	q := strings.TrimSpace(string(b))
	if q == "" {
		return "", errNoQuestion
	}
	return q, nil
}
