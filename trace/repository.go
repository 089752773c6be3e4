package trace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// Repository is the interface for persisting finalized traces.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
	Load(ctx context.Context, traceID string) (*Trace, error)
}

// FileRepository persists traces as versioned JSON files.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a new FileRepository that writes to the given directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace to {dir}/{trace_id}.json.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	path := filepath.Join(r.dir, trace.TraceID+".json")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return goerr.Wrap(err, "failed to create trace file", goerr.V("path", path))
	}
	defer f.Close()

	if err := trace.Export(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to flush trace file", goerr.V("path", path))
	}
	return nil
}

// Load reads a trace previously written by Save.
func (r *FileRepository) Load(_ context.Context, traceID string) (*Trace, error) {
	path := filepath.Join(r.dir, traceID+".json")
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open trace file", goerr.V("path", path))
	}
	defer f.Close()

	return Load(f)
}
