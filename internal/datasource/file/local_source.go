package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens a single document from local disk. It implements
// datasource.Source.
type Local struct{ path string }

// NewLocal binds a source to one filesystem path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path reports the bound filesystem path.
func (l *Local) Path() string { return l.path }

// Open returns a reader over the file. A canceled context short-circuits
// before the filesystem is touched; open failures wrap the path and keep the
// underlying error visible to errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
