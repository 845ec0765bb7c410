// Command akeval is the main entry point for the audio keyword evaluator
// server.
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
	"golang.org/x/sync/errgroup"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/config"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/health"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/match"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/resilience"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/server"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/session"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/translate"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
	analysisllm "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis/llm"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/anyllm"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt"
	sttopenai "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt/openai"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/stt/whisper"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation"
	translationllm "github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/translation/llm"
)

// version is stamped by the build via -ldflags.
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "akeval: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "akeval: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("akeval starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "akeval",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline wiring ───────────────────────────────────────────────────────
	store := keyword.NewMemStore(keyword.WithCapacity(cfg.Keywords.Capacity))

	breakerCfg := resilience.Config{
		Threshold: cfg.Breaker.Threshold,
		Cooldown:  cfg.Breaker.Cooldown,
		Probes:    cfg.Breaker.Probes,
	}

	var bridge *translate.Bridge
	if providers.Translation != nil {
		translationBreaker := breakerCfg
		translationBreaker.Name = "translation"
		bridge = translate.NewBridge(providers.Translation,
			translate.WithBreaker(resilience.New(translationBreaker)),
			translate.WithLogger(logger),
		)
	}

	keywordLanguage := cfg.Keywords.Language
	if keywordLanguage == "" {
		keywordLanguage = "en"
	}

	analysisBreakerCfg := breakerCfg
	analysisBreakerCfg.Name = "analysis"
	analysisBreaker := resilience.New(analysisBreakerCfg)

	reconciler := match.New(providers.Analysis, bridge, keywordLanguage,
		match.WithBreaker(analysisBreaker),
		match.WithLogger(logger),
	)

	controllerOpts := []session.Option{session.WithLogger(logger)}
	if cfg.Timeouts.Transcription > 0 {
		controllerOpts = append(controllerOpts, session.WithTranscribeTimeout(cfg.Timeouts.Transcription))
	}
	if cfg.Timeouts.Analysis > 0 {
		controllerOpts = append(controllerOpts, session.WithAnalyzeTimeout(cfg.Timeouts.Analysis))
	}
	controller := session.New(providers.STT, reconciler, store, controllerOpts...)

	// ── Health checks ─────────────────────────────────────────────────────────
	checks := health.New(
		health.Checker{
			Name: "keyword-store",
			Check: func(ctx context.Context) error {
				_, err := store.List(ctx)
				return err
			},
		},
		health.Checker{
			Name: "analysis-breaker",
			Check: func(context.Context) error {
				if analysisBreaker.State() == resilience.Open {
					return errors.New("circuit open")
				}
				return nil
			},
		},
	)

	srv := server.New(controller, store,
		server.WithLogger(logger),
		server.WithHealth(checks),
	)

	// ── Config watcher ────────────────────────────────────────────────────────
	// Most settings require a restart; log level changes apply live.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if old.Server.LogLevel != new.Server.LogLevel {
			logLevel.Set(slogLevel(new.Server.LogLevel))
			slog.Info("log level changed", "level", new.Server.LogLevel)
		}
		slog.Info("configuration reloaded; settings other than log level apply on restart")
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	// ── HTTP server lifecycle ─────────────────────────────────────────────────
	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providers bundles the instantiated pipeline backends.
type providers struct {
	STT         stt.Provider
	Analysis    analysis.Provider
	Translation translation.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithDefaultLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeDefaultLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttopenai.WithDefaultLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Analysis ──────────────────────────────────────────────────────────────

	reg.RegisterAnalysis("llm", func(entry config.ProviderEntry) (analysis.Provider, error) {
		backend, err := llmBackend(entry)
		if err != nil {
			return nil, err
		}
		return analysisllm.New(backend, entry.Model)
	})

	// ── Translation ───────────────────────────────────────────────────────────

	reg.RegisterTranslation("llm", func(entry config.ProviderEntry) (translation.Provider, error) {
		backend, err := llmBackend(entry)
		if err != nil {
			return nil, err
		}
		return translationllm.New(backend, entry.Model)
	})
}

// llmBackend creates the any-llm-go chat backend named in entry.Backend.
func llmBackend(entry config.ProviderEntry) (anyllmlib.Provider, error) {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Backend, opts...)
}

// buildProviders instantiates the providers named in cfg. STT is mandatory;
// analysis and translation are optional (the pipeline degrades to exact
// matching on the original keyword text without them).
func buildProviders(cfg *config.Config, reg *config.Registry) (*providers, error) {
	ps := &providers{}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = p
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.Analysis.Name; name != "" {
		p, err := reg.CreateAnalysis(cfg.Providers.Analysis)
		if err != nil {
			return nil, fmt.Errorf("create analysis provider %q: %w", name, err)
		}
		ps.Analysis = p
		slog.Info("provider created", "kind", "analysis", "name", name)
	} else {
		ps.Analysis = unavailableAnalysis{}
		slog.Warn("no analysis provider configured; semantic matching disabled")
	}

	if name := cfg.Providers.Translation.Name; name != "" {
		p, err := reg.CreateTranslation(cfg.Providers.Translation)
		if err != nil {
			return nil, fmt.Errorf("create translation provider %q: %w", name, err)
		}
		ps.Translation = p
		slog.Info("provider created", "kind", "translation", "name", name)
	} else {
		slog.Warn("no translation provider configured; cross-language matching disabled")
	}

	return ps, nil
}

// unavailableAnalysis is the stand-in when no analysis provider is
// configured. Every call fails, so analyses run in permanent exact-only
// degradation.
type unavailableAnalysis struct{}

var _ analysis.Provider = unavailableAnalysis{}

func (unavailableAnalysis) Analyze(context.Context, analysis.Request) (*analysis.Result, error) {
	return nil, errors.New("no analysis provider configured")
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         akeval — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Analysis", cfg.Providers.Analysis.Name, cfg.Providers.Analysis.Model)
	printProvider("Translation", cfg.Providers.Translation.Name, cfg.Providers.Translation.Model)
	lang := cfg.Keywords.Language
	if lang == "" {
		lang = "en"
	}
	fmt.Printf("║  Keyword lang    : %-19s ║\n", lang)
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

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
