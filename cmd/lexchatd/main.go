package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/config"
	"github.com/papercomputeco/lexchat/pkg/gemini"
	"github.com/papercomputeco/lexchat/pkg/logger"
	"github.com/papercomputeco/lexchat/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (default ~/.lexchat/config.toml)")
	envFile := flag.String("env-file", "", "Path to dotenv file (default .env)")
	listenAddr := flag.String("listen", "", "Address to listen on (default :8080)")
	maxSessions := flag.Int("max-sessions", 1000, "Maximum live sessions, 0 for no limit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	loadOpts := config.LoadOptions{ConfigPath: *configPath, EnvFile: *envFile}
	cfg, err := config.Load(loadOpts)
	if err != nil {
		logger.NewLogger(true, os.Stderr).Fatal("failed to load configuration", zap.Error(err))
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	// Set up logger; the level follows the config file when it changes
	level := zap.NewAtomicLevelAt(logger.Level(cfg.Debug || *debug))
	log := logger.NewLeveledLogger(level, os.Stderr)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("lexchat server starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("model", cfg.Model),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, loadOpts, log, func(c config.Config) {
				level.SetLevel(logger.Level(c.Debug || *debug))
			})
			if err != nil {
				log.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	s := server.New(server.Config{
		ListenAddr:  cfg.ListenAddr,
		MaxSessions: *maxSessions,
	}, gemini.NewGenerator(cfg.GeminiConfig(), log), log)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := s.Shutdown(); err != nil {
			log.Warn("shutdown failed", zap.Error(err))
		}
	}()

	if err := s.Run(); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
