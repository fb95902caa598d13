package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/cultist-circle/internal/circle"
	"github.com/iwvelando/cultist-circle/internal/config"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"github.com/iwvelando/cultist-circle/pkg/constants"
	"github.com/iwvelando/cultist-circle/pkg/logging"
	"github.com/iwvelando/cultist-circle/pkg/output"
	"github.com/iwvelando/cultist-circle/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// loadConfiguration falls back to defaults when the default config file is
// absent; an explicitly named file must exist.
func loadConfiguration(path string, explicit bool) (*config.Configuration, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Default()
	}
	return config.LoadConfiguration(path)
}

func loadRequest(path string) (circle.Request, error) {
	var req circle.Request
	if path == "" {
		return req, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request file: %w", err)
	}
	return req, nil
}

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	catalogFile := flag.String("catalog", "", "read items from a JSON snapshot instead of the remote catalog")
	requestFile := flag.String("request", "", "YAML file with slots, exclusions and price overrides")
	mode := flag.String("mode", "", "game mode override: pve, pvp")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	seed := flag.Uint64("seed", 0, "seed for the tie-breaking pick (0 picks a random seed)")
	watch := flag.Bool("watch", false, "re-resolve whenever the request file changes")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	// Load the config file to get logging configuration
	conf, err := loadConfiguration(*configLocation, explicitConfig)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	// Initialize logging based on config and CLI override
	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	if *outputFormatFlag != "" {
		conf.Output.Format = *outputFormatFlag
	}
	if *mode != "" {
		conf.Catalog.Mode = *mode
	}
	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	for _, warning := range conf.Warnings() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	var rnd selector.Rand
	if *seed != 0 {
		rnd = selector.NewRand(*seed)
	}
	optimizer, err := selector.NewOptimizer(logger, conf.Selector.Policy, rnd)
	if err != nil {
		logger.Fatal("failed to build optimizer",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	var catalogs *circle.Catalogs
	if *catalogFile != "" {
		catalogs = circle.NewFileCatalogs(logger, *catalogFile)
	} else {
		catalogs = circle.NewCatalogs(logger, conf.Catalog, &http.Client{Timeout: 30 * time.Second})
	}
	defer func() {
		_ = catalogs.Close()
	}()

	service := circle.NewService(logger, catalogs, selector.NewCoordinator(logger, optimizer), circle.Defaults{
		Mode:       conf.Catalog.Mode,
		Threshold:  conf.Threshold,
		MaxItems:   conf.MaxItems,
		Categories: conf.Selector.Categories,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		if *requestFile == "" {
			logger.Fatal("-watch needs a -request file",
				zap.String("op", "main"),
			)
		}
		if err := watchRequests(ctx, logger, service, *requestFile, conf.Output.Format); err != nil {
			logger.Fatal("failed to watch request file",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		return
	}

	req, err := loadRequest(*requestFile)
	if err != nil {
		logger.Fatal("failed to load request",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	resp, err := service.Resolve(ctx, req)
	if err != nil {
		logger.Fatal("failed to resolve circle",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	if err := output.Write(os.Stdout, conf.Output.Format, resp); err != nil {
		logger.Fatal("failed to write output",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

// watchRequests resolves the request file every time it changes until the
// process is interrupted.
func watchRequests(ctx context.Context, logger *zap.Logger, service *circle.Service, path string, outputFormat string) error {
	session := service.NewSession()
	defer session.Close()

	return session.Watch(ctx, path, loadRequest, func(res circle.Result) {
		if res.Err != nil {
			logger.Error("failed to resolve circle",
				zap.String("op", "main.watchRequests"),
				zap.Int("status", circle.StatusCode(res.Err)),
				zap.Error(res.Err),
			)
			return
		}
		if err := output.Write(os.Stdout, outputFormat, res.Response); err != nil {
			logger.Error("failed to write output",
				zap.String("op", "main.watchRequests"),
				zap.Error(err),
			)
		}
	})
}
