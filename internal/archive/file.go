package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/skillprobe/internal/interview"
)

var _ interview.ReportSink = (*FileSink)(nil)

// FileSink appends reports as JSON lines to a local file. It suits single
// instance deployments without PostgreSQL. Safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a FileSink writing to path. The file is created on the
// first report.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Store appends r as one line.
func (s *FileSink) Store(_ context.Context, r *interview.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("archive: marshal report: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open %q: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("archive: write: %w", err)
	}
	return nil
}
