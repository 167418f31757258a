// Package telemetry provides leveled logging plus a JSONL event sink for
// stabilization telemetry, and the glyph heuristics that flag notable ξ
// movements: Ξ for a strain spike, G∅λ for stabilization relief, • for a
// degraded channel.
package telemetry

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// #region levels

// ParseLevel maps a level name to a slog.Level. Supported: "info",
// "debug" (case-insensitive); unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// #endregion levels

// #region glyphs

// Glyph symbols.
const (
	GlyphSpike    = "Ξ"
	GlyphRelief   = "G∅λ"
	GlyphFallback = "•"
)

// Default ξ-delta thresholds for glyph emission.
const (
	DefaultSpikeThreshold  = 0.15
	DefaultReliefThreshold = -0.10
)

// GlyphForXiDelta maps a ξ change to a glyph: a rise of at least spike
// yields Ξ, a drop of at least |relief| yields G∅λ, anything between
// yields "".
func GlyphForXiDelta(xiBefore, xiAfter, spike, relief float64) string {
	delta := xiAfter - xiBefore
	if delta >= spike {
		return GlyphSpike
	}
	if delta <= relief {
		return GlyphRelief
	}
	return ""
}

// #endregion glyphs

// #region event-log

// EventLog appends structured events to a JSONL file. Safe for concurrent
// use. A nil EventLog is safe; all methods are no-ops on a nil receiver.
type EventLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewEventLog opens path for append, creating parent directories as
// needed. Returns nil on failure; callers treat a nil log as disabled.
func NewEventLog(path string) *EventLog {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return &EventLog{file: f}
}

// Log writes one event as a JSON line with a timestamp and event name.
// The caller's field map is not mutated. Safe on a nil receiver.
func (l *EventLog) Log(event string, fields map[string]any) {
	if l == nil || l.file == nil {
		return
	}

	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["event"] = event

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(data)
}

// Glyph logs a glyph emission event. Empty symbols are ignored.
func (l *EventLog) Glyph(symbol, context string) {
	if symbol == "" {
		return
	}
	l.Log("glyph_emission", map[string]any{"symbol": symbol, "context": context})
}

// Close closes the underlying file. Safe on a nil receiver.
func (l *EventLog) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Close()
	l.file = nil
}

// #endregion event-log
