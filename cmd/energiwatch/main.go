package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/energiwatch/energiwatch/pkg/advisor"
	"github.com/energiwatch/energiwatch/pkg/dashboard"
	"github.com/energiwatch/energiwatch/pkg/generator"
	"github.com/energiwatch/energiwatch/pkg/llm"
	"github.com/energiwatch/energiwatch/pkg/log"
	"github.com/energiwatch/energiwatch/pkg/publisher"
	"github.com/energiwatch/energiwatch/pkg/server"
	"github.com/energiwatch/energiwatch/pkg/state"
	"github.com/energiwatch/energiwatch/pkg/storage"
)

func main() {
	// init packages
	s := storage.Configured()
	g := llm.Configured()
	gen := generator.New(nil)
	adv := advisor.Configured(g, gen)
	pub := publisher.Configured()

	// init server
	srv := server.Configured(llm.NewProxy(g))

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		pub.Close()
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	st := state.New(ctx, storage.NewStore(s))
	d := dashboard.New(ctx, st, adv, gen, pub)
	srv.SetDashboard(d)

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
