package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/catalog"
	"server/internal/consultant"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/photobooth"
	"server/internal/providers/genai"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	styles, err := catalog.Load(cfg.StylesPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StylesPath).Msg("failed to load style catalog")
	}
	logger.Info().Int("styles", styles.Len()).Msg("style catalog loaded")

	uploads, err := storage.NewFileStore(cfg.UploadsDir, "/uploads")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize upload store")
	}
	results, err := storage.NewFileStore(cfg.ResultsDir, "/results")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize result store")
	}

	// GeoIP is optional: without a database the locale falls back to headers.
	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	adapter, err := genai.NewClient(genai.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		AnalysisModel:     cfg.GeminiAnalysisModel,
		ImageModel:        cfg.GeminiImageModel,
		Logger:            &logger,
		RequestsPerMinute: cfg.GeminiRatePerMin,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is empty; serving synthetic generation results")
	}

	svc := consultant.NewService(adapter, uploads, results, styles, &logger)
	compositor := photobooth.New(uploads, results, &logger)
	app := handlers.NewApp(svc, compositor, styles, uploads, &logger)

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		DefaultLocale:      cfg.DefaultLocale,
		CountryLookup:      countryLookup,
		UploadsDir:         cfg.UploadsDir,
		ResultsDir:         cfg.ResultsDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
