package audit

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/prior-it/tweb/core"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink appends connection records to a markdown file, one section per record:
//
//	## 2024-05-01
//	    127.0.0.1
//
// The file is rotated once it grows beyond its maximum size.
type FileSink struct {
	path   string
	writer *lumberjack.Logger
}

// NewFileSink creates the parent directory of path if needed. maxSize is in megabytes, values below
// one fall back to the lumberjack default of 100 megabytes.
func NewFileSink(path string, maxSize int) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cannot create audit log directory: %w", err)
	}
	return &FileSink{
		path: path,
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(0, maxSize),
			MaxBackups: 3,
		},
	}, nil
}

func (s *FileSink) Path() string {
	return s.path
}

// Record appends a single entry. lumberjack serialises concurrent writes.
func (s *FileSink) Record(_ context.Context, ip net.IP, at time.Time) error {
	if _, err := s.writer.Write([]byte(Entry(ip, at))); err != nil {
		return fmt.Errorf("%w: %w", core.ErrAuditFailure, err)
	}
	return nil
}

func (s *FileSink) Close() error {
	return s.writer.Close()
}

// Entry formats a single record of the audit log. The date is always in UTC.
func Entry(ip net.IP, at time.Time) string {
	return fmt.Sprintf("## %s\n    %s\n\n", at.UTC().Format(time.DateOnly), ip)
}
