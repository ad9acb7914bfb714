/*
Package auditlog records the outcome of every sync attempt in a single JSON document on local storage.

The document has the shape

	{"metadata": {"lastUpdated": "..."}, "logs": [...]}

and is rewritten in full on every append.
Appends never fail from the caller's point of view:
problems are reported to the configured zap logger and counted in Prometheus metrics.
*/
package auditlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of an Entry.
type Level string

const (
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

// TimeFormat is ISO-8601 with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrCorrupt is reported when the on-disk document can't be parsed.
var ErrCorrupt = errors.New("audit log document is corrupt")

// Entry is a single immutable log record.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Cycle     string `json:"cycle,omitempty"`
	Type      string `json:"type,omitempty"`
	NewIP     string `json:"newIP,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Metadata struct {
	LastUpdated string `json:"lastUpdated"`
}

// Document is the on-disk representation of the log.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Logs     []Entry  `json:"logs"`
}

// Tail returns up to the last n entries in append order.
func (d Document) Tail(n int) []Entry {
	if n <= 0 || n >= len(d.Logs) {
		return d.Logs
	}
	return d.Logs[len(d.Logs)-n:]
}

// Fields holds the optional parts of an Entry.
type Fields struct {
	Cycle    string
	Type     string
	NewIP    string
	Attempt  int
	Response any
	Err      error
}

// Log appends entries to the document at path.
// It is safe for concurrent use, though the sync loop only ever writes from one goroutine.
type Log struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	ready bool
}

// New returns a Log backed by the file at path.
// Nothing is created on disk until the first Append.
func New(path string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the location of the backing document.
func (l *Log) Path() string { return l.path }

// Append adds an entry to the document.
func (l *Log) Append(level Level, message string, f Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Timestamp: l.now().UTC().Format(TimeFormat),
		Level:     level,
		Message:   message,
		Cycle:     f.Cycle,
		Type:      f.Type,
		NewIP:     f.NewIP,
		Attempt:   f.Attempt,
		Response:  f.Response,
	}
	if f.Err != nil {
		e.Error = f.Err.Error()
	}
	l.logger.Debug("audit",
		zap.String("level", string(level)),
		zap.String("message", message),
		zap.String("type", e.Type),
		zap.String("ip", e.NewIP),
		zap.String("error", e.Error),
	)

	if err := l.append(e); err != nil {
		writeFailures.Inc()
		l.logger.Error("unable to write audit log", zap.String("path", l.path), zap.Error(err))
	}
}

func (l *Log) append(e Entry) error {
	if err := l.ensure(e.Timestamp); err != nil {
		return err
	}
	doc, err := l.load(e.Timestamp)
	if err != nil {
		return err
	}
	doc.Logs = append(doc.Logs, e)
	doc.Metadata.LastUpdated = e.Timestamp
	return l.store(doc)
}

// ensure creates the parent directory and an empty document on first use.
func (l *Log) ensure(now string) error {
	if l.ready {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating audit log directory: %w", err)
		}
	}
	if _, err := os.Stat(l.path); errors.Is(err, fs.ErrNotExist) {
		if err := l.store(emptyDocument(now)); err != nil {
			return err
		}
		l.logger.Info("created audit log", zap.String("path", l.path))
	} else if err != nil {
		return fmt.Errorf("error checking audit log: %w", err)
	}
	l.ready = true
	return nil
}

func (l *Log) load(now string) (Document, error) {
	doc, err := Read(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return emptyDocument(now), nil
	case errors.Is(err, ErrCorrupt):
		recoveredDocuments.Inc()
		l.logger.Warn("replacing unreadable audit log with an empty document",
			zap.String("path", l.path), zap.Error(err))
		return emptyDocument(now), nil
	case err != nil:
		return Document{}, err
	}
	return doc, nil
}

// store replaces the document by writing a sibling temp file and renaming it over the original.
func (l *Log) store(doc Document) error {
	if doc.Logs == nil {
		doc.Logs = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding audit log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), "."+filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("error replacing audit log: %w", err)
	}
	return nil
}

// Read parses the document at path.
// Parse failures are returned wrapped in ErrCorrupt.
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("error reading audit log: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return doc, nil
}

func emptyDocument(now string) Document {
	return Document{
		Metadata: Metadata{LastUpdated: now},
		Logs:     []Entry{},
	}
}
