// Package toolserver exposes the legal assistant as an MCP tool so other
// agents can ask it questions over stdio.
package toolserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/session"
)

// ToolName is the name of the single tool the server offers.
const ToolName = "ask_legal_question"

const toolDescription = "Answers a question about Brazilian law, citing the official code sources. " +
	"Each call is independent; previous questions are not remembered."

// AskInput is the tool's argument object.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer, preferably in Portuguese"`
}

// Server is an MCP server with one tool.
type Server struct {
	gen    chat.Generator
	logger *zap.Logger
	server *mcp.Server
}

// New builds the server. Every tool call gets a fresh conversation.
func New(gen chat.Generator, version string, logger *zap.Logger) *Server {
	s := &Server{
		gen:    gen,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: "lexchat", Version: version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolName,
		Description: toolDescription,
	}, s.ask)

	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp tool server listening on stdio", zap.String("tool", ToolName))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, nil, errors.New("question must not be empty")
	}

	conv := chat.NewConversation(session.NewStore(), s.gen, s.logger)

	var sb strings.Builder
	turn, err := conv.Ask(ctx, question, &sb)
	if err != nil {
		s.logger.Warn("tool call failed", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: chat.FallbackReply + "\n\n" + err.Error()}},
		}, nil, nil
	}

	s.logger.Debug("tool call answered", zap.String("hash", turn.Hash), zap.Int("len", len(turn.Content)))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: turn.Content}},
	}, nil, nil
}
