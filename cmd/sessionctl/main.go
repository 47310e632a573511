// Command sessionctl inspects and drives the audio session monitor from a
// terminal. On desktop builds it runs against the simulated platform.
//
// Usage:
//
//	sessionctl [-config file] [-env file] settings [-watch interval]
//	sessionctl [-config file] [-env file] events [-url ws://host/events]
//	sessionctl [-config file] [-env file] serve [-simulate interval] [-journal file]
//	sessionctl history file
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrWong99/audiosession/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("sessionctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "path to the YAML configuration file (overrides $"+config.EnvConfigPath+")")
	envFile := global.String("env", ".env", "dotenv file loaded before reading the environment")
	global.Usage = func() { usage(global) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(global)
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "sessionctl: %v\n", err)
		return 1
	}
	if *configPath != "" {
		os.Setenv(config.EnvConfigPath, *configPath)
	}
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "sessionctl: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(stderr, level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "settings":
		err = runSettings(ctx, cfg, rest, stdout)
	case "events":
		err = runEvents(ctx, cfg, rest, stdout)
	case "serve":
		err = runServe(ctx, cfg, level, rest)
	case "history":
		err = runHistory(rest, stdout)
	default:
		fmt.Fprintf(stderr, "sessionctl: unknown command %q\n", cmd)
		usage(global)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("command failed", "command", cmd, "err", err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "usage: sessionctl [flags] settings|events|serve|history [command flags]")
	fs.PrintDefaults()
}

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
