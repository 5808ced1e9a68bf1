// Package history keeps the activity log: a JSON array of conversions,
// newest first, shared by every process that points at the same file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimestampLayout is the format of Entry.Timestamp
const TimestampLayout = "2006-01-02 15:04:05"

// Actions recorded by the image tools
const (
	ActionCompressImage = "Compress Image"
	ActionIncreaseSize  = "Increase Image Size"
)

// Entry is one logged conversion
type Entry struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Action       string `json:"action"`
	OriginalName string `json:"original_name"`
	Filename     string `json:"filename"`
}

// Log is a file-backed activity log. mu serializes goroutines sharing a
// Log; the flock serializes processes sharing the file.
type Log struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	now    func() time.Time
	logger *logrus.Logger
}

// Open prepares the log at path, creating its directory.
func Open(path string, logger *logrus.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Log{
		path:   path,
		lock:   flock.New(path + ".lock"),
		now:    time.Now,
		logger: logger,
	}, nil
}

// Path returns the log file path
func (l *Log) Path() string {
	return l.path
}

// Load returns all entries, newest first. A missing or unreadable log is
// treated as empty.
func (l *Log) Load() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer l.unlock()

	return l.read(), nil
}

// Record prepends a new entry and rewrites the log.
func (l *Log) Record(action, originalName, filename string) (Entry, error) {
	entry := Entry{
		ID:           uuid.NewString(),
		Timestamp:    l.now().Format(TimestampLayout),
		Action:       action,
		OriginalName: originalName,
		Filename:     filename,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return Entry{}, fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer l.unlock()

	entries := append([]Entry{entry}, l.read()...)
	if err := l.write(entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Stats summarizes the log for a dashboard
type Stats struct {
	TotalConversions int   `json:"total_conversions"`
	FileCount        int   `json:"file_count"`
	StorageBytes     int64 `json:"storage_bytes"`
}

// UsageFunc reports stored file count and bytes
type UsageFunc func() (files int, bytes int64, err error)

// Stats counts logged conversions and asks usage for storage figures.
func (l *Log) Stats(usage UsageFunc) (Stats, error) {
	entries, err := l.Load()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{TotalConversions: len(entries)}
	if usage != nil {
		files, size, err := usage()
		if err != nil {
			return Stats{}, fmt.Errorf("storage usage: %w", err)
		}
		stats.FileCount = files
		stats.StorageBytes = size
	}
	return stats, nil
}

// FormatMB renders a byte count as megabytes with two decimals
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

func (l *Log) read() []Entry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.WithError(err).Warn("Failed to read history, starting empty")
		}
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.WithError(err).Warn("Corrupt history file, starting empty")
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

func (l *Log) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (l *Log) unlock() {
	if err := l.lock.Unlock(); err != nil {
		l.logger.WithError(err).Warn("Failed to release history lock")
	}
}
