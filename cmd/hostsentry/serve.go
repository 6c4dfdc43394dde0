package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akorchagin/hostsentry/internal/collector"
	"github.com/akorchagin/hostsentry/internal/config"
	"github.com/akorchagin/hostsentry/internal/intel"
	"github.com/akorchagin/hostsentry/internal/mcp"
	"github.com/akorchagin/hostsentry/internal/monitor"
	"github.com/akorchagin/hostsentry/internal/rag"
	"github.com/akorchagin/hostsentry/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		jsonLogs bool
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring daemon and MCP server",
		Long:  "Start the collectors, the event store and the MCP/metrics listener, and run until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(jsonLogs, debug)
		},
	}
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs instead of console output")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func runServe(jsonLogs, debug bool) error {
	log := newLogger(jsonLogs, debug)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	col, err := collector.New(collector.Options{
		CaptureInterface: cfg.CaptureInterface,
		Logger:           log,
	})
	if err != nil {
		if errors.Is(err, collector.ErrUnsupportedPlatform) {
			return fmt.Errorf("no collector for this platform: %w", err)
		}
		return fmt.Errorf("init collector: %w", err)
	}

	// The vector index is optional: without Ollama the daemon still
	// records events and serves deterministic analysis.
	var (
		sink   storage.DocumentSink
		engine *rag.Engine
	)
	embedder := rag.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbedModel)
	index, err := rag.NewChromemIndex(cfg.VectorDir, embedder)
	if err != nil {
		log.Warn().Err(err).Msg("vector index unavailable, semantic search disabled")
	} else {
		sink = index
		llm := rag.NewOllamaClient(cfg.OllamaBaseURL, cfg.LLMModel, log)
		engine = rag.NewEngine(index, llm, log)
	}

	writer, err := storage.Open(storage.Options{
		Path:          cfg.DBPath,
		QueueCapacity: cfg.QueueCapacity,
		BatchSize:     cfg.BatchSize,
		BatchAge:      cfg.BatchAge,
		Sink:          sink,
		EventsDir:     cfg.EventsDir,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}

	sup := monitor.New(monitor.Options{
		Collector:    col,
		Sink:         writer,
		CPUThreshold: cfg.CPUThreshold,
		MemThreshold: cfg.MemThreshold,
		Logger:       log,
	})
	supDone := runAsync(ctx, sup.Run)

	// A dead persistence loop makes the daemon useless; shut down with a
	// non-zero exit so a supervisor process can restart it.
	storeDead := make(chan error, 1)
	go func() {
		select {
		case <-writer.Done():
			log.Error().Msg("event store stopped unexpectedly, shutting down")
			storeDead <- errors.New("event store stopped unexpectedly")
			stop()
		case <-ctx.Done():
		}
	}()

	deps := mcp.Deps{
		Store:   writer,
		Scanner: intel.NewClient(cfg.MalwareBazaarURL, cfg.URLHausURL, cfg.VTAPIKey, log),
		Version: version,
		Log:     log,
	}
	if engine != nil {
		deps.Engine = engine
	}

	srv := mcp.NewServer(deps)
	serveErr := srv.Start(ctx, cfg.ListenAddr())

	// Let in-flight monitor rounds finish before the writer stops
	// accepting events, so shutdown drains rather than rejects.
	<-supDone

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := writer.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("event store close failed")
	}

	select {
	case err := <-storeDead:
		return err
	default:
	}
	return serveErr
}

// runAsync starts run in a goroutine and returns a channel that closes
// when it returns.
func runAsync(ctx context.Context, run func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx)
	}()
	return done
}

func newLogger(jsonLogs, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if jsonLogs {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
