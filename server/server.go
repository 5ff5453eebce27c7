// Package server hosts chat sessions over HTTP. Replies are streamed to the
// client as newline-delimited JSON while they are generated.
package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"expvar"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/chat"
	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/logger"
	"github.com/papercomputeco/lexchat/pkg/merkle"
	"github.com/papercomputeco/lexchat/pkg/session"
)

var (
	sessionsCreated    = expvar.NewInt("lexchat_sessions_created")
	turnsCompleted     = expvar.NewInt("lexchat_turns_completed")
	generationFailures = expvar.NewInt("lexchat_generation_failures")
	partialStreams     = expvar.NewInt("lexchat_partial_streams")
)

// Server is the web session host.
type Server struct {
	config   Config
	sessions *registry
	logger   *zap.Logger
	app      *fiber.App
}

// New creates a Server whose sessions generate replies with gen.
func New(config Config, gen chat.Generator, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		sessions: newRegistry(gen, config.MaxSessions, logger),
		logger:   logger,
		app:      app,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	api := app.Group("/api")
	api.Post("/sessions", s.handleCreateSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)
	api.Get("/sessions/:id/turns", s.handleListTurns)
	api.Get("/sessions/:id/turns/:hash", s.handleGetTurn)
	api.Post("/sessions/:id/turns", s.handleTurn)

	return s
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting lexchat server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting lexchat server", zap.String("listen", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and drops every session.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Turns     []session.Turn `json:"turns"`
}

// TurnRequest is the body of a new user turn.
type TurnRequest struct {
	Content string `json:"content"`
}

// StreamLine is one NDJSON line of a streamed reply. Exactly one of Fragment,
// Done or Error is set.
type StreamLine struct {
	Fragment string        `json:"fragment,omitempty"`
	Done     bool          `json:"done,omitempty"`
	Turn     *session.Turn `json:"turn,omitempty"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	e, err := s.sessions.create()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
	}
	sessionsCreated.Add(1)
	s.logger.Info("session created", zap.String("session", e.id), zap.Int("live", s.sessions.len()))

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		ID:        e.id,
		CreatedAt: e.createdAt,
		Turns:     []session.Turn{},
	})
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if !s.sessions.remove(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListTurns(c *fiber.Ctx) error {
	e, ok := s.sessions.get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}
	return c.JSON(SessionResponse{
		ID:        e.id,
		CreatedAt: e.createdAt,
		Turns:     e.conv.Store().All(),
	})
}

func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	e, ok := s.sessions.get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}

	turn, err := e.conv.Store().Get(c.Params("hash"))
	if err != nil {
		var notFound merkle.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "turn not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
	return c.JSON(turn)
}

// handleTurn commits a user turn and streams the reply. Failures before the
// first fragment are reported with a 502; later failures arrive as a final
// error line, since the status has already been sent.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	e, ok := s.sessions.get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	}

	var req TurnRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	startTime := time.Now()
	reply, err := e.conv.Submit(c.UserContext(), req.Content)
	if errors.Is(err, chat.ErrTurnInProgress) {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		generationFailures.Add(1)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error:  chat.FallbackReply,
			Detail: err.Error(),
			Kind:   generator.Kind(err),
		})
	}

	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Transfer-Encoding", "chunked")

	sessionID := e.id
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer reply.Close()
		enc := json.NewEncoder(w)

		for reply.Next() {
			if err := enc.Encode(StreamLine{Fragment: reply.Fragment()}); err != nil {
				s.logger.Warn("client went away mid-stream", zap.String("session", sessionID), zap.Error(err))
				return
			}
			if err := w.Flush(); err != nil {
				s.logger.Warn("client went away mid-stream", zap.String("session", sessionID), zap.Error(err))
				return
			}
		}

		final := StreamLine{Done: true}
		if err := reply.Err(); err != nil {
			final = StreamLine{Error: err.Error(), Kind: generator.Kind(err)}
			if errors.Is(err, generator.ErrPartialStream) {
				partialStreams.Add(1)
			} else {
				generationFailures.Add(1)
			}
		} else {
			turn := reply.Turn()
			final.Turn = &turn
			turnsCompleted.Add(1)
			s.logger.Info("turn completed",
				zap.String("session", sessionID),
				zap.String("hash", logger.Preview(turn.Hash, 16)),
				zap.Duration("duration", time.Since(startTime)),
			)
		}

		_ = enc.Encode(final)
		_ = w.Flush()
	}))

	return nil
}

