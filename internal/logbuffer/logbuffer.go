package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry represents a single log entry
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// Buffer is a thread-safe ring buffer of recent log lines
type Buffer struct {
	entries []Entry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// New creates a log buffer with the specified capacity
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Write implements io.Writer for capturing zerolog output
func (b *Buffer) Write(p []byte) (n int, err error) {
	entry := parseLine(strings.TrimRight(string(p), "\n"))
	entry.Timestamp = time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}

	return len(p), nil
}

// Entries returns all log entries in chronological order
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	if b.count == 0 {
		return result
	}

	start := 0
	if b.count == b.size {
		start = b.head
	}

	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.size]
	}
	return result
}

// Recent returns the most recent n entries
func (b *Buffer) Recent(n int) []Entry {
	entries := b.Entries()
	if n < 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Clear clears all log entries
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// parseLine pulls level, component and message out of a zerolog JSON line.
// Lines that are not JSON are kept raw at info level.
func parseLine(raw string) Entry {
	entry := Entry{Raw: raw, Level: "info", Message: raw}

	var fields struct {
		Level     string `json:"level"`
		Component string `json:"component"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return entry
	}
	if fields.Level != "" {
		entry.Level = fields.Level
	}
	if fields.Message != "" {
		entry.Message = fields.Message
	}
	entry.Component = fields.Component
	return entry
}
