package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	segmentPrefix = "audit-"
	segmentSuffix = ".jsonl"
	dayLayout     = "20060102"
)

// ErrLoggerClosed is returned by Log after Close
var ErrLoggerClosed = errors.New("audit file logger closed")

// FileLoggerConfig configures the JSON-lines file sink
type FileLoggerConfig struct {
	// Dir holds the segment files
	Dir string
	// MaxSize rolls to a new segment once the current one reaches it.
	// Defaults to 64 MiB.
	MaxSize int64
	// MaxFiles is the number of segments kept. Defaults to 30.
	MaxFiles int
	// Now stamps segments, defaults to time.Now
	Now func() time.Time
}

// FileLogger appends events as JSON lines to segments named
// audit-YYYYMMDD-NNNN.jsonl. A new segment starts each UTC day and whenever
// the current one grows past MaxSize, so names sort oldest first.
type FileLogger struct {
	cfg FileLoggerConfig

	mu   sync.Mutex
	file *os.File
	day  string
	seq  int
	size int64
}

// NewFileLogger creates cfg.Dir if needed and resumes the newest segment of
// the current day
func NewFileLogger(cfg FileLoggerConfig) (*FileLogger, error) {
	if cfg.Dir == "" {
		return nil, errors.New("audit file logger needs a directory")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 64 << 20
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	l := &FileLogger{cfg: cfg}
	day := l.today()
	segments, err := l.Segments()
	if err != nil {
		return nil, err
	}
	seq := 1
	for _, name := range segments {
		if d, n, ok := parseSegment(filepath.Base(name)); ok && d == day && n > seq {
			seq = n
		}
	}
	if err := l.open(day, seq); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) today() string {
	return l.cfg.Now().UTC().Format(dayLayout)
}

func segmentName(day string, seq int) string {
	return fmt.Sprintf("%s%s-%04d%s", segmentPrefix, day, seq, segmentSuffix)
}

func parseSegment(name string) (day string, seq int, ok bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return "", 0, false
	}
	day, rest, found := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix), "-")
	if !found {
		return "", 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return "", 0, false
	}
	return day, seq, true
}

// open switches to segment (day, seq), appending if it already exists
func (l *FileLogger) open(day string, seq int) error {
	path := filepath.Join(l.cfg.Dir, segmentName(day, seq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("open audit segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit segment: %w", err)
	}
	if l.file != nil {
		l.file.Close()
	}
	l.file, l.day, l.seq, l.size = f, day, seq, info.Size()
	return nil
}

// Log appends event to the current segment, rolling first when the day has
// changed or the segment is full
func (l *FileLogger) Log(_ context.Context, event *AuditEvent) error {
	ensureID(event)
	var line bytes.Buffer
	if err := json.NewEncoder(&line).Encode(event); err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrLoggerClosed
	}

	if day := l.today(); day != l.day {
		if err := l.roll(day, 1); err != nil {
			return err
		}
	} else if l.size > 0 && l.size+int64(line.Len()) > l.cfg.MaxSize {
		if err := l.roll(day, l.seq+1); err != nil {
			return err
		}
	}

	n, err := l.file.Write(line.Bytes())
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

func (l *FileLogger) roll(day string, seq int) error {
	if err := l.open(day, seq); err != nil {
		return err
	}
	return l.prune()
}

// prune deletes the oldest segments beyond MaxFiles
func (l *FileLogger) prune() error {
	segments, err := l.Segments()
	if err != nil {
		return err
	}
	var errs []error
	for len(segments) > l.cfg.MaxFiles {
		if err := os.Remove(segments[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		segments = segments[1:]
	}
	return errors.Join(errs...)
}

// Segments lists segment paths, oldest first
func (l *FileLogger) Segments() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.cfg.Dir, segmentPrefix+"*"+segmentSuffix))
	if err != nil {
		return nil, err
	}
	segments := matches[:0]
	for _, m := range matches {
		if _, _, ok := parseSegment(filepath.Base(m)); ok {
			segments = append(segments, m)
		}
	}
	sort.Strings(segments)
	return segments, nil
}

// Close syncs and closes the current segment
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	return err
}
