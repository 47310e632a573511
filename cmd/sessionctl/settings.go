package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/platform"
	"github.com/MrWong99/audiosession/pkg/session"
)

// runSettings prints the current settings blob. With -watch it starts
// monitoring and prints the blob again at every interval until ctx is done.
func runSettings(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	watch := fs.Duration("watch", 0, "print the settings repeatedly at this interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := platform.New(cfg)
	if err != nil {
		return err
	}
	m := monitor.New(p, monitor.ConfigOptions(cfg)...)

	if *watch <= 0 {
		return printSettings(ctx, m, out)
	}

	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	for {
		if err := printSettings(ctx, m, out); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printSettings(ctx context.Context, m *monitor.Monitor, out io.Writer) error {
	blob, err := session.Encode(m.Settings(ctx))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(blob))
	return err
}
