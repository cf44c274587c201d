// Package report stores the summary of every finished matchmaking run.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spigell/matchmaker/internal/matchmaking"
)

// FileName returns the object name a run summary is stored under.
func FileName(summary *matchmaking.Summary) string {
	return fmt.Sprintf("run-%s.json", summary.RunID)
}

func encode(summary *matchmaking.Summary) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dir writes summaries as indented JSON files. An empty path uses the temp directory.
type Dir struct {
	path string
}

var _ matchmaking.Reporter = (*Dir)(nil)

func NewDir(path string) *Dir {
	if path == "" {
		path = os.TempDir()
	}
	return &Dir{path: path}
}

func (d *Dir) Report(_ context.Context, summary *matchmaking.Summary) error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return err
	}

	file, err := os.Create(d.Path(summary))
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// Path returns where the summary of the run is written.
func (d *Dir) Path(summary *matchmaking.Summary) string {
	return filepath.Join(d.path, FileName(summary))
}

// Multi sends the summary to every reporter and joins their errors.
type Multi []matchmaking.Reporter

func (m Multi) Report(ctx context.Context, summary *matchmaking.Summary) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
