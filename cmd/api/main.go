package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nutritrack/internal/api"
	"nutritrack/internal/config"
	"nutritrack/internal/logging"
	"nutritrack/internal/meal"
	"nutritrack/internal/platform/auth"
	"nutritrack/internal/platform/backend"
	"nutritrack/internal/platform/gemini"
	"nutritrack/internal/platform/imagestore"
	"nutritrack/internal/platform/localllm"
	"nutritrack/internal/scan"
	"nutritrack/internal/session"
	"nutritrack/internal/tracker"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx := context.Background()

	backendClient := backend.NewClient(cfg.Backend.URL, cfg.Timeouts.Request)
	authClient := auth.NewClient(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Timeouts.Request)

	var geminiClient *gemini.Client
	if cfg.Gemini.APIKey != "" {
		var err error
		geminiClient, err = gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return fmt.Errorf("error creating gemini client: %w", err)
		}
		defer geminiClient.Close()
	}

	var analyzer scan.Analyzer
	switch cfg.Analyzer {
	case "local":
		analyzer = localllm.NewClient(cfg.LocalLLM.URL, cfg.LocalLLM.Model)
	default:
		analyzer = geminiClient
	}

	var cache meal.Store
	if cfg.Database.URL != "" {
		dbStore, err := meal.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("error creating postgresstore: %w", err)
		}
		defer dbStore.Close()
		cache = dbStore
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		return err
	}

	trk := tracker.NewService(backendClient, logger)
	var verifier session.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("auth.jwt_secret not set, bearer tokens are checked with the auth provider")
	}
	app := session.NewApp(session.Config{
		Auth:     authClient,
		Verifier: verifier,
		Users:    authClient,
		Profiles: trk,
		NewPipeline: func(ctx context.Context, email string) (*scan.Pipeline, error) {
			return scan.NewPipeline(ctx, backendClient, scan.Config{
				Owner:    email,
				Analyzer: analyzer,
				Logs:     backendClient,
				Cache:    cache,
				Archive:  archive,
				Logger:   logger,
			})
		},
		NewChat: func(ctx context.Context, email string) (session.Chat, error) {
			if geminiClient == nil {
				return nil, errors.New("chat needs gemini.api_key")
			}
			allergens, err := backendClient.ListAllergens(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch allergens: %w", err)
			}
			return geminiClient.NewChat(meal.AllergenNames(allergens)), nil
		},
		Logger: logger,
	})
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	defer app.Teardown()

	handler := api.NewHandler(app, trk, logger, cfg.Timeouts.Scan, cfg.Timeouts.Request)
	r := setupRouter(cfg, handler)

	logger.WithFields(logrus.Fields{"port": cfg.Server.Port, "analyzer": cfg.Analyzer, "images": cfg.Images.Store}).Info("starting server")
	return r.Run(":" + strconv.Itoa(cfg.Server.Port))
}

// newArchive returns the configured image archive, or nil when archiving is
// off.
func newArchive(ctx context.Context, cfg *config.Config) (scan.Archiver, error) {
	switch cfg.Images.Store {
	case "disk":
		store, err := imagestore.NewDiskStore(cfg.Images.Dir)
		if err != nil {
			return nil, fmt.Errorf("error creating image store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := imagestore.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region)
		if err != nil {
			return nil, fmt.Errorf("error creating s3 image store: %w", err)
		}
		return store, nil
	}
	return nil, nil
}

func setupRouter(cfg *config.Config, handler *api.Handler) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Timezone", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handler.Register(r)
	if cfg.Images.Store == "disk" {
		r.Static("/images", cfg.Images.Dir)
	}
	return r
}
