package cli

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/danielmmetz/hn-reader/api"
	"github.com/danielmmetz/hn-reader/readability"
	"github.com/danielmmetz/hn-reader/sse"
	"github.com/danielmmetz/hn-reader/store"
	"github.com/danielmmetz/hn-reader/worker"
)

const articleMaxAge = 7 * 24 * time.Hour

type serveConfig struct {
	addr      string
	port      int
	staticDir string
	cachePath string
}

func serveCommand(cfg *Config) *ffcli.Command {
	var sc serveConfig
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.StringVar(&sc.addr, "addr", "localhost", "Address to listen on")
	flags.IntVar(&sc.port, "port", 8080, "Port to listen on")
	flags.StringVar(&sc.staticDir, "static-dir", "", "Path to static files directory")
	flags.StringVar(&sc.cachePath, "cache-path", "hnreader-cache.db", "SQLite file caching extracted articles (shared with -storage sqlite)")

	return &ffcli.Command{
		Name:       "serve",
		ShortUsage: "hnreader serve [-addr host] [-port N] [-static-dir dir]",
		ShortHelp:  "Serve the JSON API, event stream and static client.",
		FlagSet:    flags,
		Options:    options(),
		Exec: func(ctx context.Context, _ []string) error {
			if err := cfg.setup(); err != nil {
				return err
			}
			if cfg.LogLevel == "warn" {
				// a server wants its lifecycle logs
				slog.SetLogLoggerLevel(slog.LevelInfo)
			}
			return runServe(ctx, cfg, sc)
		},
	}
}

func runServe(ctx context.Context, cfg *Config, sc serveConfig) error {
	savedStore, closeStore, err := cfg.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer closeStore()

	// Article cache
	cachePath := sc.cachePath
	if cfg.Storage == "sqlite" && cfg.StoragePath != "" {
		cachePath = cfg.StoragePath
	}
	db, err := store.Open(cachePath)
	if err != nil {
		return err
	}
	defer db.Close()
	articles := store.NewArticleStore(db)

	// SSE broker
	broker := sse.NewBroker(1000)
	unsubscribe := api.PublishChanges(savedStore, broker)
	defer unsubscribe()

	repo := cfg.repository()
	articlesHandler := api.NewArticlesHandler(repo, readability.NewExtractor(nil), articles)

	var staticFS fs.FS
	if sc.staticDir != "" {
		slog.Info("serving static files from filesystem", "dir", sc.staticDir)
		staticFS = os.DirFS(sc.staticDir)
	}

	mux := api.NewMux(api.Handlers{
		Stories:  api.NewStoriesHandler(repo),
		Comments: api.NewCommentsHandler(repo),
		Articles: articlesHandler,
		Refresh:  api.NewRefreshHandler(articlesHandler, broker),
		Saved:    api.NewSavedHandler(savedStore, repo),
		Health:   api.NewHealthHandler(savedStore, broker),
		Broker:   broker,
		Static:   staticFS,
	})

	// Background worker context
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	cleaner := worker.NewCleaner(articles, articleMaxAge)
	cleaner.Start(workerCtx)

	// HTTP server with graceful shutdown
	listenAddr := fmt.Sprintf("%s:%d", sc.addr, sc.port)
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", listenAddr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
		slog.Info("context done, shutting down")
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
