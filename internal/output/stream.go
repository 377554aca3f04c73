// Package output writes and reads the JSON files produced by the pipeline.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// StreamWriter writes one JSON array incrementally. Records are appended a
// batch at a time and flushed after every batch, so a file closed after an
// interruption still holds a valid array of everything written so far.
//
// A StreamWriter is not safe for concurrent use; the runner is its only
// writer.
type StreamWriter struct {
	w       *bufio.Writer
	closer  io.Closer
	count   int
	batches int
	closed  bool
}

// NewStreamWriter starts an array on w.
func NewStreamWriter(w io.Writer) (*StreamWriter, error) {
	s := &StreamWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if _, err := s.w.WriteString("[\n"); err != nil {
		return nil, err
	}
	return s, s.w.Flush()
}

// Create truncates path and starts an array in it.
func Create(path string) (*StreamWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	s, err := NewStreamWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return s, nil
}

// WriteBatch appends items to the array and flushes.
func (s *StreamWriter) WriteBatch(items []any) error {
	if s.closed {
		return fmt.Errorf("write to closed stream")
	}
	for _, item := range items {
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return fmt.Errorf("encode record %d: %w", s.count, err)
		}
		if s.count > 0 {
			if _, err := s.w.WriteString(",\n"); err != nil {
				return err
			}
		}
		if _, err := s.w.Write(data); err != nil {
			return err
		}
		s.count++
	}
	s.batches++
	return s.w.Flush()
}

// Count returns the number of records written.
func (s *StreamWriter) Count() int { return s.count }

// Batches returns the number of WriteBatch calls that succeeded.
func (s *StreamWriter) Batches() int { return s.batches }

// Close terminates the array and closes the underlying file, if any. It is
// safe to call more than once.
func (s *StreamWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := s.w.WriteString("\n]\n")
	if err == nil {
		err = s.w.Flush()
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LineWriter appends raw lines and flushes after every batch.
type LineWriter struct {
	w      *bufio.Writer
	closer io.Closer
	count  int
}

// NewLineWriter writes lines to w.
func NewLineWriter(w io.Writer) *LineWriter {
	l := &LineWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// CreateLines truncates path and returns a LineWriter on it.
func CreateLines(path string) (*LineWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return NewLineWriter(f), nil
}

// WriteLines appends each line followed by a newline, then flushes.
func (l *LineWriter) WriteLines(lines [][]byte) error {
	for _, line := range lines {
		if _, err := l.w.Write(line); err != nil {
			return err
		}
		if err := l.w.WriteByte('\n'); err != nil {
			return err
		}
		l.count++
	}
	return l.w.Flush()
}

// Count returns the number of lines written.
func (l *LineWriter) Count() int { return l.count }

// Close flushes and closes the underlying file, if any.
func (l *LineWriter) Close() error {
	err := l.w.Flush()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
