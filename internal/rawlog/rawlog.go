// Package rawlog collects raw transport records together with whether each
// one decoded as valid quaternion data. Every record is logged, parsed or
// not; decode failures are data-quality events, not errors.
package rawlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Sink accepts one raw record per call. parsed reports whether the record
// decoded into a valid, normalizable quaternion.
type Sink interface {
	Append(line string, parsed bool)
}

// Entry is one captured record.
type Entry struct {
	Time   time.Time `json:"time"`
	Line   string    `json:"line"`
	Parsed bool      `json:"parsed"`
}

// Settings controls what a Buffer keeps and shows.
type Settings struct {
	// MaxLines caps the buffer; the oldest entries are discarded first.
	MaxLines int `json:"max_lines"`
	// ParsedOnly drops records that failed to decode.
	ParsedOnly bool `json:"parsed_only"`
	// Timestamps includes capture time in formatted output.
	Timestamps bool `json:"timestamps"`
}

// DefaultSettings mirrors the defaults of the original log panel.
func DefaultSettings() Settings {
	return Settings{MaxLines: 1000}
}

// Buffer is a bounded in-memory Sink.
type Buffer struct {
	mu       sync.Mutex
	settings Settings
	entries  []Entry
	appended uint64
}

func NewBuffer(settings Settings) *Buffer {
	if settings.MaxLines <= 0 {
		settings.MaxLines = DefaultSettings().MaxLines
	}
	return &Buffer{settings: settings}
}

func (b *Buffer) Append(line string, parsed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.appended++
	if b.settings.ParsedOnly && !parsed {
		return
	}

	b.entries = append(b.entries, Entry{Time: time.Now(), Line: line, Parsed: parsed})
	if over := len(b.entries) - b.settings.MaxLines; over > 0 {
		b.entries = append(b.entries[:0], b.entries[over:]...)
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Appended returns the lifetime count of records offered to the buffer,
// including ones filtered out by ParsedOnly.
func (b *Buffer) Appended() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appended
}

// Settings returns the current settings, for preferences persistence.
func (b *Buffer) Settings() Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

// Format renders one entry the way the log panel displayed it.
func (b *Buffer) Format(e Entry) string {
	marker := "FAIL"
	if e.Parsed {
		marker = " OK "
	}
	if b.Settings().Timestamps {
		return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05.000"), marker, e.Line)
	}
	return fmt.Sprintf("[%s] %s", marker, e.Line)
}

// FileSink appends records to a log file, one per line, with timestamp and
// parse marker.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Append(line string, parsed bool) {
	marker := "FAIL"
	if parsed {
		marker = " OK "
	}
	s.mu.Lock()
	fmt.Fprintf(s.f, "%s [%s] %s\n", time.Now().Format(time.RFC3339Nano), marker, line)
	s.mu.Unlock()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Multi fans one record out to several sinks.
func Multi(sinks ...Sink) Sink { return multiSink(sinks) }

type multiSink []Sink

func (m multiSink) Append(line string, parsed bool) {
	for _, s := range m {
		s.Append(line, parsed)
	}
}

// Discard drops everything.
var Discard Sink = nopSink{}

type nopSink struct{}

func (nopSink) Append(string, bool) {}
