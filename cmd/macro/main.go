// nightboard/cmd/macro/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nightboard/macro"
	"nightboard/macro/tui"
)

func main() {
	configPath := flag.String("config", "macro.yaml", "settings file")
	dryRun := flag.Bool("dry-run", false, "write messages to the log instead of typing them")
	logPath := flag.String("log", "macro.log", "log file (the terminal belongs to the UI)")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg, loadErr := macro.Load(*configPath)
	if loadErr != nil {
		logger.Error("Failed to load settings, using defaults", "path", *configPath, "error", loadErr)
	}

	var keyboard macro.Keyboard = macro.XdotoolKeyboard{}
	if *dryRun {
		keyboard = &macro.WriterKeyboard{W: logFile}
		logger.Info("Dry run, keystrokes go to the log")
	}

	latch := macro.NewLatch()
	signals := macro.NewSignalHotkey(triggerSignals...)
	defer signals.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := macro.NewDispatcher(cfg, keyboard, macro.AnyHotkey{latch, signals}, logger)
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	ui := tui.New(tui.Options{
		Path:       *configPath,
		Config:     cfg,
		LoadErr:    loadErr,
		Dispatcher: dispatcher,
		Latch:      latch,
		Logger:     logger,
	})
	logger.Info("Macro started", "config", *configPath, "hotkey", cfg.Hotkey, "pid", os.Getpid())
	uiErr := ui.Run(ctx)

	stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Dispatcher stopped with error", "error", err)
	}
	if uiErr != nil {
		logger.Error("Terminal UI failed", "error", uiErr)
		fmt.Fprintf(os.Stderr, "terminal UI: %v\n", uiErr)
		os.Exit(1)
	}
	logger.Info("Macro exiting")
}
