package activation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// datePlaceholder in a sink path starts a new file per UTC day of the event
// timestamp, e.g. "logs/decisions-{date}.jsonl".
const datePlaceholder = "{date}"

// FileSink appends decision events to a JSONL file, one object per line.
// Every Deliver flushes so a crash loses at most the event in flight.
type FileSink struct {
	pattern string

	mu      sync.Mutex
	current string
	file    *os.File
	writer  *bufio.Writer
	closed  bool
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is empty")
	}
	s := &FileSink{pattern: path}
	if !strings.Contains(path, datePlaceholder) {
		if err := s.open(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileSink) Name() string { return "file_jsonl:" + s.pattern }

func (s *FileSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink closed")
	}

	target := s.pattern
	if strings.Contains(target, datePlaceholder) {
		target = strings.ReplaceAll(target, datePlaceholder, ev.Timestamp.UTC().Format("2006-01-02"))
	}
	if target != s.current {
		if err := s.closeFile(); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
		if err := s.open(target); err != nil {
			return err
		}
	}

	line = append(line, '\n')
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (s *FileSink) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeFile()
}

func (s *FileSink) open(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	s.current = path
	s.file = f
	s.writer = bufio.NewWriter(f)
	return nil
}

func (s *FileSink) closeFile() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	err := s.file.Close()
	s.file, s.writer, s.current = nil, nil, ""
	if flushErr != nil {
		return flushErr
	}
	return err
}
