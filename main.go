package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"ember/app"
	"ember/boot"
	"ember/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration overlay")
	webOnly := flag.Bool("web-only", false, "serve the management API without running the boot engine")
	menuTimeout := flag.Int("menu-timeout", 0, "override the menu timeout in seconds")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *webOnly, *menuTimeout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, webOnly bool, menuTimeout int, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if menuTimeout > 0 {
		cfg.Boot.MenuTimeoutSeconds = menuTimeout
	}

	selector := boot.NewConsoleSelector(os.Stdin, os.Stdout)
	container, err := app.NewContainer(context.Background(), cfg, selector, logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	return app.NewApplication(container, webOnly).Run()
}
