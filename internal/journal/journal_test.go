package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/pkg/session"
	"github.com/MrWong99/audiosession/pkg/session/mock"
)

func event(kind session.NotificationKind, reason string) monitor.Event {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return monitor.Event{
		Type:   kind,
		Reason: reason,
		Time:   at,
		Settings: session.Snapshot{
			Timestamp: at,
			Category:  session.CategoryPlayback,
			Routing:   session.Routing{Outputs: []session.Port{{Type: session.RouteHeadphones}}},
		},
	}
}

func TestAppendAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	j := NewFileJournal(path)

	if err := j.Append(event(session.RouteChange, session.ReasonNewDeviceAvailable)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(event(session.MediaServicesReset, "")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if skipped != 0 || len(events) != 2 {
		t.Fatalf("got %d events, %d skipped; want 2, 0", len(events), skipped)
	}
	if events[0].Reason != session.ReasonNewDeviceAvailable || events[0].Settings.OutputRoute() != session.RouteHeadphones {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != session.MediaServicesReset {
		t.Errorf("second event type = %s", events[1].Type)
	}
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	good, err := event(session.RouteChange, session.ReasonOverride).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	input := strings.Join([]string{string(good), "not json", "", `{"type":"bogus"}`, string(good)}, "\n")

	events, skipped, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 2 || skipped != 2 {
		t.Errorf("got %d events, %d skipped; want 2, 2", len(events), skipped)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAppend_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	j := NewFileJournal(path)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Handle(event(session.RouteChange, session.ReasonCategoryChange))
		}()
	}
	wg.Wait()

	events, skipped, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 20 || skipped != 0 {
		t.Errorf("got %d events, %d skipped; want 20, 0", len(events), skipped)
	}
}

func TestHandle_RecordsMonitorEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	j := NewFileJournal(path)

	p := &mock.Platform{State: session.Snapshot{Category: session.CategoryAmbient}}
	m := monitor.New(p)
	defer m.OnEvent(j.Handle)()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })

	p.Emit(session.Notification{Kind: session.Interruption, Interruption: session.InterruptionBegan})

	events, _, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 1 || events[0].Interruption != session.InterruptionBegan {
		t.Fatalf("events = %+v", events)
	}
}

func TestAppend_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Skip("cannot change permissions")
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	j := NewFileJournal(filepath.Join(dir, "events.jsonl"))
	if err := j.Append(event(session.RouteChange, "")); err == nil {
		t.Fatal("expected error writing into a read-only directory")
	}
}
