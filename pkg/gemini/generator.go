package gemini

import (
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/generator"
)

// NewGenerator builds a Client from cfg and wraps it in a Generator that
// requests the client's model. Every binary wires generation through here.
func NewGenerator(cfg Config, logger *zap.Logger) *generator.Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := NewClient(cfg, logger)
	return generator.New(client,
		generator.WithModel(client.Model()),
		generator.WithLogger(logger),
	)
}
