// Package generator turns one user prompt into a streamed assistant reply by
// way of an external text-generation service.
//
// Every call is stateless: the service sees the fixed instruction followed by
// the latest user content only, never earlier turns. A single attempt is made
// per call and nothing is retried.
package generator

import (
	"context"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/llm"
	"github.com/papercomputeco/lexchat/pkg/logger"
)

// FragmentReader yields the text fragments of one response. Recv returns
// io.EOF once the service signals completion.
type FragmentReader interface {
	Recv() (string, error)
	Close() error
}

// Service is the external text-generation capability.
type Service interface {
	StreamGenerateContent(ctx context.Context, req *llm.GenerateRequest) (FragmentReader, error)
}

// Fixed generation parameters.
const (
	DefaultTemperature     = 1.0
	DefaultTopP            = 0.95
	DefaultTopK            = 64
	DefaultMaxOutputTokens = 8192
)

// DefaultGenerationConfig returns the parameter set applied to every call.
func DefaultGenerationConfig() llm.GenerationConfig {
	return llm.GenerationConfig{
		Temperature:     llm.Float64(DefaultTemperature),
		TopP:            llm.Float64(DefaultTopP),
		TopK:            llm.Int(DefaultTopK),
		MaxOutputTokens: llm.Int(DefaultMaxOutputTokens),
	}
}

// DefaultSafetySettings blocks medium-and-above in all four categories.
func DefaultSafetySettings() []llm.SafetySetting {
	return []llm.SafetySetting{
		{Category: llm.HarmCategoryHarassment, Threshold: llm.BlockMediumAndAbove},
		{Category: llm.HarmCategoryHateSpeech, Threshold: llm.BlockMediumAndAbove},
		{Category: llm.HarmCategorySexuallyExplicit, Threshold: llm.BlockMediumAndAbove},
		{Category: llm.HarmCategoryDangerousContent, Threshold: llm.BlockMediumAndAbove},
	}
}

// ComposePrompt joins the instruction and the user content with a blank line.
func ComposePrompt(instruction, prompt string) string {
	return instruction + "\n\n" + prompt
}

// Generator issues generation requests with a fixed instruction and policy.
type Generator struct {
	service     Service
	instruction string
	model       string
	logger      *zap.Logger
	onError     func(error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithInstruction replaces LegalInstruction.
func WithInstruction(instruction string) Option {
	return func(g *Generator) { g.instruction = instruction }
}

// WithModel sets the model name passed on each request.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithErrorReporter registers fn to receive every generation and stream
// failure, in addition to the error returned to the caller.
func WithErrorReporter(fn func(error)) Option {
	return func(g *Generator) { g.onError = fn }
}

// New creates a Generator backed by service.
func New(service Service, opts ...Option) *Generator {
	g := &Generator{
		service:     service,
		instruction: LegalInstruction,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request builds the request sent for prompt. Exposed for inspection.
func (g *Generator) Request(prompt string) *llm.GenerateRequest {
	return &llm.GenerateRequest{
		Model:            g.model,
		Contents:         []llm.Content{llm.UserText(ComposePrompt(g.instruction, prompt))},
		GenerationConfig: DefaultGenerationConfig(),
		SafetySettings:   DefaultSafetySettings(),
	}
}

// Generate makes one call to the service. On failure the returned stream is
// nil and the error is a *GenerationError; the caller treats that as the
// terminal state of the turn.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Stream, error) {
	req := g.Request(prompt)

	g.logger.Debug("sending generation request",
		zap.String("model", req.Model),
		zap.Int("prompt_len", len(prompt)),
		zap.String("prompt_preview", logger.Preview(prompt, 80)),
	)

	reader, err := g.service.StreamGenerateContent(ctx, req)
	if err != nil {
		genErr := &GenerationError{Cause: err}
		g.report(genErr)
		return nil, genErr
	}

	return newStream(reader, g.logger, g.report), nil
}

func (g *Generator) report(err error) {
	g.logger.Error("generation failed", zap.String("kind", Kind(err)), zap.Error(err))
	if g.onError != nil {
		g.onError(err)
	}
}

