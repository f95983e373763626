package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rewrite-moment/internal/http/handlers"
	httpapi "rewrite-moment/internal/http/httpapi"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/pipeline"
	"rewrite-moment/internal/providers"
	"rewrite-moment/internal/providers/ark"
	"rewrite-moment/internal/providers/gemini"
	"rewrite-moment/internal/providers/replicate"
	"rewrite-moment/internal/providers/veo"
	"rewrite-moment/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Video generations routinely run for minutes at the vendor; the client
	// timeout only bounds a single submit or poll round trip.
	httpClient := &http.Client{Timeout: 90 * time.Second}

	composer, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiComposeModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build compose client")
	}

	animators := buildAnimators(cfg, httpClient, &logger)
	if len(animators) == 0 {
		logger.Fatal().Strs("priority", cfg.VideoProviderPriority).Msg("no known video provider in priority list")
	}
	for _, a := range animators {
		if !a.Configured() {
			logger.Warn().Str("provider", a.Name()).Msg("video provider has no credentials and will be skipped")
		}
	}

	policy := pipeline.Policy{
		ComposeMaxAttempts:      cfg.ComposeMaxAttempts,
		ComposeBackoff:          cfg.ComposeRetryBackoff,
		SubmitMaxAttempts:       cfg.SubmitMaxAttempts,
		SubmitBackoff:           cfg.SubmitRetryBackoff,
		DegradeOnComposeFailure: cfg.DegradeOnComposeFailure,
	}
	orchestrator := pipeline.NewOrchestrator([]providers.Composer{composer}, animators, policy, logger)
	poller := pipeline.NewPoller(animators, logger)

	app := handlers.NewApp(orchestrator, poller, logger)
	app.StaticBaseURL = cfg.StaticBaseURL
	app.WaitOpts = pipeline.WaitOptions{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}
	// Leave room under the write timeout for the final poll and the response.
	app.WaitBudget = cfg.HTTPWriteTimeout - 10*time.Second
	if cfg.StoragePath != "" {
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init upload store")
		}
		app.Store = store
	}

	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildAnimators instantiates the video adapters in the configured priority
// order. Unknown names are skipped with a warning so a typo cannot take the
// whole service down.
func buildAnimators(cfg *infra.Config, httpClient *http.Client, logger *infra.Logger) []providers.Animator {
	var out []providers.Animator
	for _, name := range cfg.VideoProviderPriority {
		switch name {
		case "replicate":
			c, err := replicate.NewClient(replicate.Options{
				APIToken:   cfg.ReplicateAPIToken,
				BaseURL:    cfg.ReplicateBaseURL,
				Version:    cfg.ReplicateVersion,
				HTTPClient: httpClient,
				Logger:     logger,
			})
			if err == nil {
				out = append(out, c)
			}
		case "veo":
			c, err := veo.NewClient(veo.Options{
				APIKey:     cfg.GeminiAPIKey,
				BaseURL:    cfg.GeminiBaseURL,
				Model:      cfg.VeoModel,
				HTTPClient: httpClient,
				Logger:     logger,
			})
			if err == nil {
				out = append(out, c)
			}
		case "ark":
			c, err := ark.NewClient(ark.Options{
				APIKey:     cfg.ArkAPIKey,
				BaseURL:    cfg.ArkBaseURL,
				Model:      cfg.ArkModel,
				HTTPClient: httpClient,
				Logger:     logger,
			})
			if err == nil {
				out = append(out, c)
			}
		default:
			logger.Warn().Str("provider", name).Msg("unknown video provider in priority list")
		}
	}
	return out
}
