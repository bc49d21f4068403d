// Package auditlog writes an append-only, room-scoped trail of notable game events.
//
// Each room gets its own file under the log directory, one JSON line per event. Audit writes
// never fail a game operation; write errors are reported through zerolog's error handler.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Auditor records one event for a room.
type Auditor interface {
	Event(roomID, event string, fields map[string]any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Event(string, string, map[string]any) {}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

const fallbackName = "global"

// FileName maps a room id onto a safe log file name.
func FileName(roomID string) string {
	cleaned := unsafeChars.ReplaceAllString(roomID, "_")
	if cleaned == "" {
		cleaned = fallbackName
	}
	return cleaned + ".log"
}

// FileLog is an Auditor backed by one file per room.
type FileLog struct {
	dir string

	mu      sync.Mutex
	files   map[string]*os.File
	loggers map[string]zerolog.Logger
}

// NewFileLog creates the directory if needed.
func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}
	return &FileLog{
		dir:     dir,
		files:   make(map[string]*os.File),
		loggers: make(map[string]zerolog.Logger),
	}, nil
}

// Event appends one line to the room's file and mirrors it to the process log at debug level.
func (l *FileLog) Event(roomID, event string, fields map[string]any) {
	logger, err := l.loggerFor(FileName(roomID))
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event", event).Msg("audit log unavailable")
		return
	}
	logger.Log().Str("event", event).Fields(fields).Send()

	log.Debug().Str("room_id", roomID).Str("event", event).Fields(fields).Msg("audit")
}

func (l *FileLog) loggerFor(name string) (zerolog.Logger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if logger, ok := l.loggers[name]; ok {
		return logger, nil
	}
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("open audit file %s: %w", name, err)
	}
	logger := zerolog.New(f).With().Timestamp().Logger()
	l.files[name] = f
	l.loggers[name] = logger
	return logger, nil
}

// Release closes the file of a room that no longer exists. A later event reopens it.
func (l *FileLog) Release(roomID string) {
	name := FileName(roomID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.files[name]; ok {
		_ = f.Close()
		delete(l.files, name)
		delete(l.loggers, name)
	}
}

// Close closes every open file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for name, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, name)
		delete(l.loggers, name)
	}
	return firstErr
}
