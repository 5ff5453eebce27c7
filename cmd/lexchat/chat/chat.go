package chatcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/cmd/lexchat/cliconfig"
	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/config"
	"github.com/papercomputeco/lexchat/pkg/gemini"
	"github.com/papercomputeco/lexchat/pkg/logger"
	"github.com/papercomputeco/lexchat/pkg/session"
	"github.com/papercomputeco/lexchat/tui"
)

const chatLongDesc string = `Start an interactive legal chat in the terminal.

Questions and answers accumulate in the on-screen transcript for the
life of the session. Answers stream in as they are generated and are
rendered as markdown. Press enter to send, esc or ctrl+c to quit.

The terminal belongs to the interface, so logs go to the configured
log_file, or nowhere when none is set.

Examples:
  lexchat chat
  lexchat chat --log-file /tmp/lexchat.log --debug`

const chatShortDesc string = "Interactive chat"

type chatCommander struct {
	opts    cliconfig.Options
	logFile string
	style   string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.opts.AddFlags(cmd)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file")
	cmd.Flags().StringVar(&cmder.style, "style", "dark", "Markdown style (dark, light, ascii, notty)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, _ *cobra.Command) error {
	cfg, err := c.opts.Load()
	if err != nil {
		return err
	}

	sink, closeSink, err := c.logSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	log := logger.NewLogger(cfg.Debug, sink)
	defer log.Sync()

	log.Info("starting chat", zap.String("model", cfg.Model))

	conv := chat.NewConversation(session.NewStore(), gemini.NewGenerator(cfg.GeminiConfig(), log), log)
	if err := tui.Run(ctx, conv, tui.Options{
		Model:        cfg.Model,
		GlamourStyle: c.style,
		Logger:       log,
	}); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}

func (c *chatCommander) logSink(cfg config.Config) (io.Writer, func(), error) {
	path := c.logFile
	if path == "" {
		path = cfg.LogFile
	}
	if path == "" {
		return io.Discard, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
