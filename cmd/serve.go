package cmd

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"repo-scan/config"
	"repo-scan/data"
	"repo-scan/github"
	"repo-scan/handlers"
	"repo-scan/pypi"
	"repo-scan/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the analysis API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("failed to create data directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatalf("failed to open DB: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	store := &storage.Storage{DB: db}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	if err := store.InitSchema(ctx); err != nil {
		logger.Fatalf("failed to initialize schema: %v", err)
	}

	dm := &data.DataManager{
		Store:  store,
		Source: github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token, config.DefaultHTTPTimeout),
		API: &pypi.Client{
			BaseURL:    cfg.PyPI.BaseURL,
			HTTPClient: &http.Client{Timeout: 10 * time.Second},
		},
		Log:           logger,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		ScoreTTL:      cfg.Storage.ScoreTTL,
	}

	handler := &handlers.Handler{
		Store:       store,
		DataManager: dm,
		Log:         logger,
	}

	if cfg.Storage.DailyPurge {
		c, err := schedulePurge(dm, cfg.Storage.PurgeSchedule, logger)
		if err != nil {
			logger.Fatalf("failed to schedule cron: %v", err)
		}
		c.Start()
		defer c.Stop()
	}

	r := apiRouter(handler, cfg.Server.AllowedOrigins)

	logger.Infof("starting analysis API on port %s...", cfg.Server.Port)
	return http.ListenAndServe(":"+cfg.Server.Port, r)
}

func apiRouter(handler *handlers.Handler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Logger)

	r.Post("/analyze", handler.Analyze)
	r.Get("/packages", handler.ListPackages)
	r.Post("/packages/purge", handler.PurgeHandler)
	r.Get("/packages/{name}", handler.GetPackage)
	r.Put("/packages/{name}", handler.UpdatePackage)
	r.Delete("/packages/{name}", handler.DeletePackage)
	return r
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func schedulePurge(p purger, spec string, logger *logrus.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		logger.Info("Scheduled purge triggered")
		if _, err := p.PurgeExpired(context.Background()); err != nil {
			logger.Errorf("scheduled purge failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
