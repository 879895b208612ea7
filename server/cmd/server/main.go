package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"github.com/obsidianstack/licensewatch/server/internal/config"
	"github.com/obsidianstack/licensewatch/server/internal/logging"
)

func main() {
	var (
		configPath string
		logLevel   string
		logFormat  string
		uiDir      string
		dryRun     bool
	)

	app := kingpin.New(filepath.Base(os.Args[0]), "License expiration alerting for Elasticsearch monitoring clusters.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the YAML config file.").Short('c').Default("config.yaml").StringVar(&configPath)
	app.Flag("log.level", "Override the configured log level, one of [debug, info, warn, error].").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.format", "Override the configured log format, one of [json, text].").EnumVar(&logFormat, "json", "text")
	app.Version(version.Print("licensewatch"))

	serveCmd := app.Command("serve", "Run the evaluation loop with the REST, websocket, metrics and gRPC health endpoints.").Default()
	serveCmd.Flag("ui-dir", "Serve static UI files from this directory; empty disables it.").PlaceHolder("DIR").StringVar(&uiDir)

	evalCmd := app.Command("evaluate", "Run one evaluation cycle and print the resulting alert states as JSON.")
	evalCmd.Flag("dry-run", "Print scheduled actions instead of delivering them.").BoolVar(&dryRun)

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lc := cfg.Monitoring.Log
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	logger, closeLog, err := logging.New(lc.Output, lc.Format, lc.Filename, lc.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case serveCmd.FullCommand():
		logger.Info("licensewatch starting", "version", version.Info(), "config", configPath)
		err = serve(ctx, cfg, configPath, uiDir)
	case evalCmd.FullCommand():
		err = evaluate(ctx, cfg, dryRun, os.Stdout)
	}
	if err != nil {
		logger.Error("licensewatch failed", "err", err)
		closeLog()
		os.Exit(1)
	}
}
