// Package datasource abstracts where input documents come from. The runner
// consumes Artifact values and never touches the filesystem (or any future
// remote source) directly.
package datasource

import (
	"context"
	"io"
)

// Artifact is one input document available for extraction.
type Artifact struct {
	// Name is the document's base name, used for document kind detection and
	// logging.
	Name string

	// Source opens the document's bytes.
	Source Source
}

// Source opens a single document for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Lister enumerates the documents of one pipeline run.
type Lister interface {
	List(ctx context.Context) ([]Artifact, error)
}
