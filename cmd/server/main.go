// Docs Browser Server
//
// Features:
// - Project discovery and file trees over a local projects directory
// - Markdown rendering with syntax highlighting and mermaid diagrams
// - Full-text search
// - File upload with collision-free naming (optional S3 archive)
// - Live reload over WebSocket driven by fsnotify
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/docbrowser/internal/api"
	"github.com/fruitsalade/docbrowser/internal/archive"
	"github.com/fruitsalade/docbrowser/internal/catalog"
	"github.com/fruitsalade/docbrowser/internal/config"
	"github.com/fruitsalade/docbrowser/internal/events"
	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/internal/render"
	"github.com/fruitsalade/docbrowser/internal/search"
	"github.com/fruitsalade/docbrowser/internal/upload"
	"github.com/fruitsalade/docbrowser/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Docs Browser starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("projects", cfg.ProjectsDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := catalog.NewScanner(cfg.ExcludeDirs)

	// Initial search index
	index := search.NewIndex(cfg.ProjectsDir, scanner)
	if err := index.Rebuild(ctx); err != nil {
		logging.Fatal("initial index build failed", zap.Error(err))
	}

	renderer, err := render.New(cfg.RenderCacheSize)
	if err != nil {
		logging.Fatal("renderer init failed", zap.Error(err))
	}

	// Optional upload archive
	var archiver upload.Archiver
	if cfg.ArchiveEnabled() {
		a, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Region:    cfg.ArchiveRegion,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			logging.Fatal("archive init failed", zap.Error(err))
		}
		archiver = a
		logging.Info("upload archive enabled", zap.String("bucket", cfg.ArchiveBucket))
	}
	writer := upload.NewWriter(archiver)

	// Live reload
	broadcaster := events.NewBroadcaster()
	notifier, err := watcher.Start(ctx, watcher.Config{
		Root:      cfg.ProjectsDir,
		Scanner:   scanner,
		Publisher: broadcaster,
		Index:     index,
		Watch:     cfg.WatchEnabled,
		Debounce:  cfg.WatchDebounce,
	})
	if err != nil {
		logging.Fatal("change notifier init failed", zap.Error(err))
	}

	srv := api.NewServer(api.Config{
		ProjectsDir:      cfg.ProjectsDir,
		MaxUploadSize:    cfg.MaxUploadSize,
		SearchMaxResults: cfg.SearchMaxResults,
		WebappDir:        cfg.WebappDir,
	}, api.Deps{
		Scanner:     scanner,
		Index:       index,
		Renderer:    renderer,
		Writer:      writer,
		Broadcaster: broadcaster,
		Notifier:    notifier,
	})

	// Start metrics server
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")

		notifier.Close()
		broadcaster.Close()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("http shutdown", zap.Error(err))
		}
		if metricsServer != nil {
			metricsServer.Close()
		}
	}()

	logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
	// ListenAndServe returns as soon as Shutdown starts; wait for it to finish.
	<-stopped
	logging.Info("server stopped")
}
