package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/audiosession/internal/config"
)

const watcherValidYAML = `
log_level: info
recording:
  mode: voiceChat
`

const watcherUpdatedYAML = `
log_level: debug
recording:
  mode: videoChat
`

const watcherInvalidYAML = `
log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// rewrite replaces the file and bumps its mtime so the watcher notices even
// on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	writeFile(t, path, content)
	mt := time.Now().Add(offset)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

type changeRecorder struct {
	mu    sync.Mutex
	diffs []config.ConfigDiff
	ch    chan struct{}
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{ch: make(chan struct{}, 8)}
}

func (r *changeRecorder) onChange(_, _ *config.Config, d config.ConfigDiff) {
	r.mu.Lock()
	r.diffs = append(r.diffs, d)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diffs)
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().LogLevel; got != config.LogInfo {
		t.Errorf("LogLevel = %q, want info", got)
	}
	if w.Path() != cfgPath {
		t.Errorf("Path() = %q", w.Path())
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherInvalidYAML)

	if _, err := config.NewWatcher(cfgPath, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	rec := newChangeRecorder()
	w, err := config.NewWatcher(cfgPath, rec.onChange, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	rewrite(t, cfgPath, watcherUpdatedYAML, time.Second)

	select {
	case <-rec.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}

	rec.mu.Lock()
	d := rec.diffs[0]
	rec.mu.Unlock()
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level debug", d)
	}
	if !d.RecordingChanged {
		t.Error("RecordingChanged = false")
	}
	if got := w.Current().LogLevel; got != config.LogDebug {
		t.Errorf("Current().LogLevel = %q, want debug", got)
	}
}

func TestWatcher_InvalidChangeKeepsPrevious(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	rec := newChangeRecorder()
	w, err := config.NewWatcher(cfgPath, rec.onChange, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	rewrite(t, cfgPath, watcherInvalidYAML, time.Second)
	time.Sleep(100 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("callback called %d times for an invalid file", rec.count())
	}
	if got := w.Current().LogLevel; got != config.LogInfo {
		t.Errorf("Current().LogLevel = %q, want info", got)
	}
}

func TestWatcher_TouchWithoutChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	rec := newChangeRecorder()
	w, err := config.NewWatcher(cfgPath, rec.onChange, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	rewrite(t, cfgPath, watcherValidYAML, time.Second)
	time.Sleep(100 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("callback called %d times for identical content", rec.count())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
