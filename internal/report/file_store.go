package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nholik/rauc-health/internal/health"
	"github.com/rs/zerolog"
)

const reportFileMode = 0o644

// FileStore keeps the most recent report as a JSON file so that other
// tooling on the device can see how the last boot check ended.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the report file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save replaces the report file. Readers never observe a partial file.
func (s *FileStore) Save(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report.Failures == nil {
		report.Failures = []health.FailedService{}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := writeAtomic(s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write report %s: %w", s.path, err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Str("result", string(report.Result)).
		Msg("report written")
	return nil
}

// writeAtomic writes data to a temp file next to path, syncs it and renames
// it into place.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(reportFileMode); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	if dirHandle, openErr := os.Open(dir); openErr == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
	return nil
}
