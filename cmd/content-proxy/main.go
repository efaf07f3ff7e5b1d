// Command content-proxy serves the club site's gallery and news APIs from
// a read-through cache in front of the remote drive store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/clubweb/content-proxy/pkg/api"
	"github.com/clubweb/content-proxy/pkg/auth"
	"github.com/clubweb/content-proxy/pkg/cache"
	"github.com/clubweb/content-proxy/pkg/config"
	"github.com/clubweb/content-proxy/pkg/drive"
	"github.com/clubweb/content-proxy/pkg/enrich"
	"github.com/clubweb/content-proxy/pkg/gallery"
	"github.com/clubweb/content-proxy/pkg/logging"
	"github.com/clubweb/content-proxy/pkg/news"
)

func run(ctx context.Context, cmd *cli.Command) error {
	var cfg config.AppConfig
	if err := config.LoadWithDefaults(cmd.String("config"), "config/config.yaml", &cfg); err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.App.LogLevel),
		Pretty: cfg.App.PrettyLog,
	})
	logger.Info().
		Str("address", cfg.App.HTTP.Address()).
		Str("drive_host", cfg.Drive.Host).
		Str("cache_backend", cfg.Cache.Backend).
		Msg("Configuration loaded")

	store, err := newCacheStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache store: %w", err)
	}
	cacheManager := cache.NewManager(store, logging.NewLogger("cache"))

	authenticator, err := auth.New(auth.Config{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scope:        cfg.Auth.Scope,
		CacheFile:    cfg.Auth.CacheFile,
		SafetyMargin: cfg.Auth.SafetyMargin.Std(),
	}, logging.NewLogger("auth"))
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}

	client, err := drive.New(drive.Config{
		BaseURL:      cfg.Drive.BaseURL,
		LoginHost:    cfg.Drive.LoginHost,
		HTTPTimeout:  cfg.Drive.Timeout.Std(),
		MaxRedirects: cfg.Drive.MaxRedirects,
	}, authenticator, logging.NewLogger("drive"))
	if err != nil {
		return fmt.Errorf("init drive client: %w", err)
	}

	sites := drive.NewSiteResolver(client, cacheManager, cfg.Drive.Host, cfg.Drive.SitePath,
		cfg.Drive.SiteTTL.Std(), logging.NewLogger("site"))

	enricher := enrich.New(client, enrich.Config{
		MaxConcurrency: cfg.Enrich.MaxConcurrency,
		ExcerptFunc: func(content string) string {
			return news.Excerpt(content, cfg.News.ExcerptLength)
		},
	}, logging.NewLogger("enrich"))

	gallerySvc := gallery.NewService(client, sites, cacheManager, gallery.Config{
		RootPath:   cfg.Gallery.RootPath,
		ListingTTL: cfg.Gallery.ListingTTL.Std(),
		YearsTTL:   cfg.Gallery.YearsTTL.Std(),
		ContentTTL: cfg.Gallery.ContentTTL.Std(),
	}, logging.NewLogger("gallery"))

	newsSvc := news.NewService(client, sites, cacheManager, enricher, news.Config{
		RootPath:      cfg.News.RootPath,
		ListingTTL:    cfg.News.ListingTTL.Std(),
		YearsTTL:      cfg.News.YearsTTL.Std(),
		DetailTTL:     cfg.News.DetailTTL.Std(),
		ExcerptLength: cfg.News.ExcerptLength,
	}, logging.NewLogger("news"))

	router := api.NewRouter(gallerySvc, newsSvc, api.CachePolicy{
		GalleryListing: cfg.Gallery.ListingTTL.Std(),
		NewsListing:    cfg.News.ListingTTL.Std(),
		Article:        cfg.News.DetailTTL.Std(),
		ImageContent:   cfg.Gallery.ContentTTL.Std(),
	}, cfg.API.AllowedOrigins, logging.NewLogger("api"))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Application error")
		return err
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// newCacheStore builds the configured cache backend. The file store is the
// default; Redis is opt-in for deployments that already run it.
func newCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisStore(client), nil
	default:
		return cache.NewFileStore(cfg.Dir)
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "content-proxy",
		Usage:  "Caching proxy for the club site's drive-backed gallery and news content",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("CONTENT_PROXY_CONFIG"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "content-proxy: %v\n", err)
		os.Exit(1)
	}
}
