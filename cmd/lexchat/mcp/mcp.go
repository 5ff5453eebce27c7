package mcpcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lexchat/cmd/lexchat/cliconfig"
	"github.com/papercomputeco/lexchat/pkg/gemini"
	"github.com/papercomputeco/lexchat/pkg/logger"
	"github.com/papercomputeco/lexchat/toolserver"
)

const mcpLongDesc string = `Serve the legal assistant as an MCP tool over stdio.

Exposes a single tool, ask_legal_question, to MCP clients such as
coding agents and desktop assistants. Every call is answered in a fresh
conversation. Logs are written to stderr; stdout carries the protocol.

Example client configuration:
  {"command": "lexchat", "args": ["mcp"]}`

const mcpShortDesc string = "Run the MCP tool server on stdio"

type mcpCommander struct {
	opts    cliconfig.Options
	version string
}

func NewMCPCmd(version string) *cobra.Command {
	cmder := &mcpCommander{version: version}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.opts.AddFlags(cmd)

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.opts.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Debug, cmd.ErrOrStderr())
	defer log.Sync()

	srv := toolserver.New(gemini.NewGenerator(cfg.GeminiConfig(), log), c.version, log)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}
