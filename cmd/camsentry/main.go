// Command camsentry runs the camera image ingestion and alerting service:
// an FTP ingestion server, the detection pipeline, and the auto-arm
// scheduler in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"camsentry/internal/config"
	"camsentry/internal/daemon"
	"camsentry/internal/logging"
	"camsentry/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("camsentry", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "path to camsentry.yaml")
		logLevel    = fs.String("log-level", "", "log level override: debug|info|warning|error")
		showVersion = fs.Bool("version", false, "print version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("camsentry %s\n", version.Version)
		return nil
	}
	if *configPath == "" {
		return fmt.Errorf("usage: camsentry -config camsentry.yaml")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if strings.TrimSpace(*logLevel) != "" {
		level = *logLevel
	}
	lg, err := logging.New(logging.Options{Level: level, DefaultSlog: true})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx, daemon.Options{Cfg: cfg, Logger: lg})
}
