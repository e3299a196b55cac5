package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/internal/bus"
	"github.com/edgecomet/pageforce/internal/common/config"
	logutil "github.com/edgecomet/pageforce/internal/common/logger"
	"github.com/edgecomet/pageforce/internal/common/metricsserver"
	"github.com/edgecomet/pageforce/internal/force"
	"github.com/edgecomet/pageforce/internal/force/metrics"
	"github.com/edgecomet/pageforce/internal/viewer/chrome"
	"github.com/edgecomet/pageforce/pkg/types"
)

func main() {
	configPath := flag.String("c", "configs/pageforce.yaml",
		"Path to pageforce configuration file")
	flag.Parse()

	// Initial logger, replaced once the config is loaded
	bootLogger := logutil.NewDefault()

	bootLogger.Info("Loading configuration", zap.String("path", *configPath))

	absPath, err := config.ResolvePath(*configPath)
	if err != nil {
		bootLogger.Fatal("Invalid config path", zap.Error(err))
	}

	cfg, err := config.Load(absPath)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logutil.New(cfg.Log)
	if err != nil {
		bootLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("Pageforce starting",
		zap.String("devtools_url", cfg.Viewer.DevtoolsURL),
		zap.String("page_url", cfg.Viewer.PageURL),
		zap.Int("max_pages", cfg.Force.MaxPagesValue()))

	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = "pageforce"
	}
	collector := metrics.NewCollector(namespace, logger)

	metricsServer, err := metricsserver.Start(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		collector,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	signalBus := bus.New(logger)

	viewer, err := chrome.Attach(context.Background(), chrome.Config{
		DevtoolsURL:      cfg.Viewer.DevtoolsURL,
		PageURL:          cfg.Viewer.PageURL,
		ViewerObject:     cfg.Viewer.ViewerObject,
		TextLayerClass:   cfg.Viewer.TextLayerClass,
		ProgressDialogID: cfg.Force.ProgressDialogID,
		AttachTimeout:    time.Duration(cfg.Viewer.AttachTimeout),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to attach to viewer", zap.Error(err))
	}
	defer viewer.Close()

	if err := viewer.InstallBridge(signalBus); err != nil {
		logger.Fatal("Failed to install signal bridge", zap.Error(err))
	}

	forcer, err := force.New(force.Config{
		WatchdogInterval: time.Duration(cfg.Force.WatchdogInterval),
		MaxPages:         cfg.Force.MaxPagesValue(),
		Highlight: force.HighlightConfig{
			Enabled:              cfg.Highlight.Enabled,
			MinAverageWordLength: cfg.Highlight.MinAverageWordLength,
			MaxAverageWordLength: cfg.Highlight.MaxAverageWordLength,
		},
	}, force.Deps{
		Viewer:   viewer,
		Bus:      signalBus,
		Progress: viewer,
		Notifier: viewer,
		Text:     viewer,
		Metrics:  collector,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create forcer", zap.Error(err))
	}

	uninstall := forcer.Install()
	defer uninstall()

	unsubscribeResult := signalBus.Subscribe(types.SignalDocumentRendered, func(payload interface{}) {
		result, ok := payload.(*types.DocumentRendered)
		if !ok {
			return
		}

		fields := []zap.Field{
			zap.String("cycle_id", result.CycleID),
			zap.Int("pages", result.Pages),
			zap.Duration("elapsed", result.Duration),
			zap.Bool("aborted", result.Aborted),
		}
		if result.Highlight != nil {
			fields = append(fields,
				zap.Bool("highlight_eligible", result.Highlight.Eligible),
				zap.Float64("average_word_length", result.Highlight.AverageWordLength))
		}
		logger.Info("Document rendered", fields...)
	})
	defer unsubscribeResult()

	// A document may already be open in the tab; the bridge only reports
	// loads that happen after installation.
	if viewer.PageCount() > 0 {
		logger.Info("Document already loaded, starting cycle")
		forcer.Start()
	}

	logger.Info("Pageforce ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", zap.Error(err))
		}
		shutdownCancel()
	}

	signalBus.Close()

	logger.Info("Pageforce stopped")
}
