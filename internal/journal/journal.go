// Package journal records monitor events as append-only JSON lines so a
// session can be inspected after the fact.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/audiosession/internal/monitor"
)

// maxLine bounds a single journal line. Events carry one settings blob and
// stay far below it.
const maxLine = 1 << 20

// FileJournal appends events to a file. Safe for concurrent use.
type FileJournal struct {
	mu   sync.Mutex
	path string
}

// NewFileJournal returns a journal writing to path. The file is created on
// the first append.
func NewFileJournal(path string) *FileJournal {
	return &FileJournal{path: path}
}

// Path returns the journal file path.
func (j *FileJournal) Path() string { return j.path }

// Append writes ev as one line.
func (j *FileJournal) Append(ev monitor.Event) error {
	data, err := ev.MarshalJSON()
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Handle appends ev and logs failures. It has the listener signature of
// [monitor.Monitor.OnEvent].
func (j *FileJournal) Handle(ev monitor.Event) {
	if err := j.Append(ev); err != nil {
		slog.Warn("journal: event not recorded", "path", j.path, "type", ev.Type, "err", err)
	}
}

// Read decodes every event in r. Malformed lines are skipped and counted.
func Read(r io.Reader) (events []monitor.Event, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, perr := monitor.ParseEvent(line)
		if perr != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return events, skipped, fmt.Errorf("journal: read: %w", err)
	}
	return events, skipped, nil
}

// ReadFile decodes the journal at path.
func ReadFile(path string) ([]monitor.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}
