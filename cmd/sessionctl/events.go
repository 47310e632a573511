package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/journal"
	"github.com/MrWong99/audiosession/internal/monitor"
)

// runEvents connects to a debug server's event stream and prints one line per
// event until ctx is done or the server closes the stream.
func runEvents(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	url := fs.String("url", "ws://"+cfg.Debug.ListenAddr+"/events", "event stream URL")
	raw := fs.Bool("raw", false, "print the JSON event instead of a summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, *url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *url, err)
	}
	defer conn.CloseNow()
	slog.Info("streaming events", "url", *url)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if *raw {
			fmt.Fprintln(out, string(msg))
			continue
		}
		ev, err := monitor.ParseEvent(msg)
		if err != nil {
			slog.Warn("skipping malformed event", "err", err)
			continue
		}
		fmt.Fprintln(out, summarize(ev))
	}
}

// runHistory prints the events recorded in a journal file.
func runHistory(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("history: expected exactly one journal file")
	}
	events, skipped, err := journal.ReadFile(args[0])
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintln(out, summarize(ev))
	}
	if skipped > 0 {
		slog.Warn("skipped malformed journal lines", "count", skipped)
	}
	return nil
}

func summarize(ev monitor.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ev.Time.Format("15:04:05.000"), ev.Type)
	if ev.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", ev.Reason)
	}
	if ev.Interruption != 0 {
		fmt.Fprintf(&b, " interruption=%s resume=%t", ev.Interruption, ev.ShouldResume)
	}
	s := ev.Settings
	fmt.Fprintf(&b, " out=%s in=%s category=%s speaker=%t", s.OutputRoute(), s.InputRoute(), s.Category, s.LargeSpeakerActive)
	if s.HasError() {
		fmt.Fprintf(&b, " error=%q", s.Err)
	}
	return b.String()
}
