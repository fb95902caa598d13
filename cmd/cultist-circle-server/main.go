package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/cultist-circle/internal/circle"
	"github.com/iwvelando/cultist-circle/internal/config"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"github.com/iwvelando/cultist-circle/internal/server"
	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/logging"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flag.String("address", "", "listen address override")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	serverConf, err := server.LoadConfig(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		serverConf.Address = *address
	}

	logger, err := logging.New(serverConf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var conf *config.Configuration
	if serverConf.CircleConfig != "" {
		conf, err = config.LoadConfiguration(serverConf.CircleConfig)
	} else {
		conf, err = config.Default()
	}
	if err != nil {
		logger.Fatal("failed to load circle configuration",
			zap.String("op", "main"),
			zap.String("path", serverConf.CircleConfig),
			zap.Error(err),
		)
	}
	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid circle configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	for _, warning := range conf.Warnings() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	optimizer, err := selector.NewOptimizer(logger, conf.Selector.Policy, nil)
	if err != nil {
		logger.Fatal("failed to build optimizer",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	catalogs := circle.NewCatalogs(logger, conf.Catalog, &http.Client{Timeout: 30 * time.Second})
	defer func() {
		_ = catalogs.Close()
	}()

	service := circle.NewService(logger, catalogs, selector.NewCoordinator(logger, optimizer), circle.Defaults{
		Mode:       conf.Catalog.Mode,
		Threshold:  conf.Threshold,
		MaxItems:   conf.MaxItems,
		Categories: conf.Selector.Categories,
	})

	srv := &http.Server{
		Addr:              serverConf.Address,
		Handler:           server.NewHandler(logger, service, serverConf.UploadSizeBytes(), serverConf.RequestTimeout, version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	logger.Info("listening",
		zap.String("op", "main"),
		zap.String("address", serverConf.Address),
		zap.String("mode", conf.Catalog.Mode),
		zap.String("version", version),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
