package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/lexchat/cmd/lexchat/ask"
	chatcmder "github.com/papercomputeco/lexchat/cmd/lexchat/chat"
	mcpcmder "github.com/papercomputeco/lexchat/cmd/lexchat/mcp"
	remotecmder "github.com/papercomputeco/lexchat/cmd/lexchat/remote"
)

var version = "dev"

const rootLongDesc string = `lexchat answers questions about Brazilian law.

Questions are sent to Gemini together with a legal-domain instruction
that points the model at the official code sources. Answers stream as
they are generated. Answers are informative only and are no substitute
for a lawyer.

Configuration is read from ~/.lexchat/config.toml, then .env, then the
environment (GEMINI_API_KEY, LEXCHAT_MODEL, LEXCHAT_BASE_URL,
LEXCHAT_DEBUG), then flags.`

func main() {
	root := &cobra.Command{
		Use:          "lexchat",
		Short:        "Brazilian legal question chat",
		Long:         rootLongDesc,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		chatcmder.NewChatCmd(),
		askcmder.NewAskCmd(),
		mcpcmder.NewMCPCmd(version),
		remotecmder.NewRemoteCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
