package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"

	"chat-house/contract"
	"chat-house/infrastructure/tcp"
	"chat-house/internal"
	"chat-house/moderation"
	"chat-house/runtime"
	"chat-house/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. The
// pattern keeps defers running on exit and the wiring testable outside
// of main.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation
	censorChar, err := internal.CharacterRune(config.CensorChar)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	words, err := moderation.EmbeddedWords()
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	censor, err := moderation.NewCensor(words, censorChar)
	if err != nil {
		return fmt.Errorf("building censor: %w", err)
	}
	log.Info("censored words loaded", "count", len(words))

	// 3. Group engine
	registry := runtime.NewRegistry(log)
	handshaker := runtime.NewHandshaker(registry, censor, log)
	sup := workers.NewSupervisor(log, config.RestartInterval)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Transport
	transportOpts := tcp.Options{
		SendTimeout: config.SendTimeout,
		KillGrace:   config.KillGrace,
	}
	handler := func(ctx context.Context, conn contract.Conn) {
		sess, err := handshaker.Admit(conn)
		if err != nil {
			log.Debug("handshake refused", "peer", conn.RemoteAddr(), "err", err)
			return
		}
		sup.Start(ctx, sess)
	}
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener := tcp.NewServer(log, address, transportOpts, handler)

	// 6. Debug roster
	if config.DebugPort > 0 {
		internal.StartDebugServer(log, config.DebugPort, rosterProvider(registry))
	}

	// 7. Supervised run until a signal arrives
	telemetry := workers.NewRosterTelemetry(log, registry, config.TelemetryInterval)
	sup.Add(listener, telemetry).Run(ctx)

	log.Info("server stopped")
	return nil
}

func rosterProvider(registry *runtime.Registry) internal.RosterProvider {
	return func() []internal.RosterRow {
		return lo.Map(registry.Snapshot(), func(info runtime.GroupInfo, _ int) internal.RosterRow {
			return internal.RosterRow{
				Name:    info.Name,
				Type:    string(info.Type),
				Admin:   info.Admin,
				Members: info.Members,
				Waiting: info.Waiting,
				Muted:   info.Muted,
			}
		})
	}
}
