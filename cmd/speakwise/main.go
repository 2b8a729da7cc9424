// Command speakwise is the main entry point for the Speakwise tutoring server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/speakwise/speakwise/internal/analysis"
	"github.com/speakwise/speakwise/internal/api"
	"github.com/speakwise/speakwise/internal/config"
	"github.com/speakwise/speakwise/internal/dialogue"
	"github.com/speakwise/speakwise/internal/health"
	"github.com/speakwise/speakwise/internal/observe"
	"github.com/speakwise/speakwise/internal/resilience"
	"github.com/speakwise/speakwise/internal/store"
	memstore "github.com/speakwise/speakwise/internal/store/memory"
	pgstore "github.com/speakwise/speakwise/internal/store/postgres"
	"github.com/speakwise/speakwise/internal/tutor"
	"github.com/speakwise/speakwise/internal/vocab"
	"github.com/speakwise/speakwise/internal/voice"
	"github.com/speakwise/speakwise/pkg/provider/llm"
	"github.com/speakwise/speakwise/pkg/provider/llm/anyllm"
	llmopenai "github.com/speakwise/speakwise/pkg/provider/llm/openai"
	"github.com/speakwise/speakwise/pkg/provider/stt"
	"github.com/speakwise/speakwise/pkg/provider/stt/assemblyai"
	"github.com/speakwise/speakwise/pkg/provider/stt/whisper"
	"github.com/speakwise/speakwise/pkg/provider/tts"
	"github.com/speakwise/speakwise/pkg/provider/tts/openaitts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speakwise: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speakwise: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("speakwise starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "speakwise",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}

	ttsProvider, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	st, closeStore, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	defer closeStore()

	// ── Pipeline ──────────────────────────────────────────────────────────────
	engine, err := dialogue.New(llmProvider)
	if err != nil {
		slog.Error("failed to build dialogue engine", "err", err)
		return 1
	}

	orchOpts := []tutor.Option{
		tutor.WithNearMissMatcher(vocab.New()),
	}
	if sttProvider != nil {
		orchOpts = append(orchOpts, tutor.WithTranscription(sttProvider))
	}
	if cfg.Analysis.Command != "" {
		bridgeOpts := []analysis.Option{}
		if cfg.Analysis.TimeoutSeconds > 0 {
			bridgeOpts = append(bridgeOpts, analysis.WithTimeout(time.Duration(cfg.Analysis.TimeoutSeconds)*time.Second))
		}
		bridge, err := analysis.NewBridge(cfg.Analysis.Command, cfg.Analysis.Args, bridgeOpts...)
		if err != nil {
			slog.Error("failed to build analysis bridge", "err", err)
			return 1
		}
		orchOpts = append(orchOpts, tutor.WithAnalyzer(bridge))
	} else {
		slog.Warn("no analysis worker configured — practice scoring degrades to transcripts")
	}

	orch, err := tutor.New(st, engine, voice.New(ttsProvider), orchOpts...)
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.New(orch).Register(mux)
	health.New(storeChecker(st)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildLLM constructs the completion provider named in entry, chaining the
// optional fallback entry behind a circuit breaker.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := newLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)

	if entry.Fallback == nil {
		return primary, nil
	}
	secondary, err := newLLM(*entry.Fallback)
	if err != nil {
		return nil, fmt.Errorf("llm fallback %q: %w", entry.Fallback.Name, err)
	}
	group := resilience.NewLLMFallback(entry.Name, primary, resilience.BreakerConfig{Name: "llm"})
	group.Add(entry.Fallback.Name, secondary)
	slog.Info("provider fallback chained", "kind", "llm", "fallback", entry.Fallback.Name)
	return group, nil
}

func newLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	}

	// Every other known name is served through the any-llm universal client.
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// buildSTT constructs the transcription provider, or returns nil when none is
// configured (voice endpoints then report transcription as unavailable).
func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		slog.Warn("no stt provider configured — voice input disabled")
		return nil, nil
	}

	primary, err := newSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("stt provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)

	if entry.Fallback == nil {
		return primary, nil
	}
	secondary, err := newSTT(*entry.Fallback)
	if err != nil {
		return nil, fmt.Errorf("stt fallback %q: %w", entry.Fallback.Name, err)
	}
	group := resilience.NewSTTFallback(entry.Name, primary, resilience.BreakerConfig{Name: "stt"})
	group.Add(entry.Fallback.Name, secondary)
	slog.Info("provider fallback chained", "kind", "stt", "fallback", entry.Fallback.Name)
	return group, nil
}

func newSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "assemblyai":
		var opts []assemblyai.Option
		if entry.BaseURL != "" {
			opts = append(opts, assemblyai.WithBaseURL(entry.BaseURL))
		}
		return assemblyai.New(entry.APIKey, opts...)
	case "whisper":
		var opts []whisper.Option
		if entry.BaseURL != "" {
			opts = append(opts, whisper.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

// buildTTS constructs the speech synthesis provider, or returns nil when none
// is configured (replies then carry no audio).
func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	if entry.Name == "" {
		slog.Warn("no tts provider configured — replies will carry no audio")
		return nil, nil
	}

	primary, err := newTTS(entry)
	if err != nil {
		return nil, fmt.Errorf("tts provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name, "model", entry.Model)

	if entry.Fallback == nil {
		return primary, nil
	}
	secondary, err := newTTS(*entry.Fallback)
	if err != nil {
		return nil, fmt.Errorf("tts fallback %q: %w", entry.Fallback.Name, err)
	}
	group := resilience.NewTTSFallback(entry.Name, primary, resilience.BreakerConfig{Name: "tts"})
	group.Add(entry.Fallback.Name, secondary)
	slog.Info("provider fallback chained", "kind", "tts", "fallback", entry.Fallback.Name)
	return group, nil
}

func newTTS(entry config.ProviderEntry) (tts.Provider, error) {
	if entry.Name != "openai" {
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
	var opts []openaitts.Option
	if entry.BaseURL != "" {
		opts = append(opts, openaitts.WithBaseURL(entry.BaseURL))
	}
	if entry.Model != "" {
		opts = append(opts, openaitts.WithModel(entry.Model))
	}
	return openaitts.New(entry.APIKey, opts...)
}

// ── Storage wiring ────────────────────────────────────────────────────────────

func buildStore(ctx context.Context, cfg config.StorageConfig) (store.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		slog.Warn("no postgres_dsn configured — using the in-process store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	pg, err := pgstore.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("storage initialised", "backend", "postgres")
	return pg, pg.Close, nil
}

// storeChecker verifies the store during readiness probes. The in-process
// store always passes; the postgres store pings its pool.
func storeChecker(st store.Store) health.Checker {
	return health.Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			if pg, ok := st.(*pgstore.Store); ok {
				return pg.Ping(ctx)
			}
			return nil
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Speakwise — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.Analysis.Command != "" {
		printProvider("Analyzer", cfg.Analysis.Command, "")
	} else {
		printProvider("Analyzer", "", "")
	}
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Storage         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Storage         : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
