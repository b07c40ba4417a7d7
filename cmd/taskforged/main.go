// Command taskforged runs the task-orchestration HTTP server: it wires the
// Registry, Catalog, synthesis back-end and Executor behind the transport
// and streams lifecycle events back to the caller. No Parser is wired
// (transport.NewServer gets nil), so every request is answered through the
// Executor's chat-only path; no plan DAG is built from request text.
//
// Grounded on cmd/agent/main.go's load-config -> init-logging ->
// wire-registry -> run shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"

	"taskforge/internal/builtin"
	"taskforge/internal/catalog"
	"taskforge/internal/config"
	"taskforge/internal/events"
	"taskforge/internal/executor"
	"taskforge/internal/logging"
	"taskforge/internal/registry"
	"taskforge/internal/synth"
	"taskforge/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Printf("config load failed: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, "")
	pterm.DefaultBigText.WithLetters(pterm.NewLettersFromStringWithStyle("taskforge", pterm.NewStyle(pterm.FgCyan))).Render()
	pterm.Info.Printf("starting on %s:%d (log level %s)\n", cfg.Host, cfg.Port, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogConn := cfg.Database.ConnectionString
	if catalogConn == "" {
		catalogConn = cfg.CatalogURL
	}
	var catalogSaver registry.Saver
	if catalogConn != "" {
		pool, err := pgxpool.New(ctx, catalogConn)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect")
		}
		defer pool.Close()

		var cache *redis.Client
		if cfg.Redis.Addr != "" {
			cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
			defer cache.Close()
		}

		store := catalog.NewPostgresStore(pool, cache)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("catalog schema")
		}
		catalogSaver = store
		pterm.Success.Println("catalog store connected")
	} else {
		pterm.Warning.Println("no database configured; running with in-memory catalog only")
	}

	sandboxTimeout := time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second
	loader := registry.NewDockerLoader(cfg.Sandbox.Image, sandboxTimeout)
	reg := registry.New(loader, catalogSaver)
	builtin.Register(reg)

	backend := synth.Select(cfg.Synth.Model, cfg.Synth.APIKey, cfg.Synth.APIBase)
	ex := executor.New(reg, backend, nil)

	var kafkaPub events.Publisher
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		kafkaPub = pub
		pterm.Info.Printf("kafka fan-out enabled on topic %s\n", cfg.KafkaTopic)
	}

	server := transport.NewServer(nil, ex, log, kafkaPub)

	e := echo.New()
	e.HideBanner = true
	server.Register(e)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	go func() {
		if err := e.Start(addr); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	pterm.Info.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
