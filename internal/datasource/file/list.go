// Package file implements a local filesystem-backed document source.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dex/internal/datasource"
)

// ManifestName is the optional per-directory manifest. When present, only
// the files it lists are processed; otherwise every regular file in the
// directory is a candidate.
const ManifestName = "manifest.txt"

// Dir lists documents from a local directory.
type Dir struct {
	dir     string
	pattern string
}

// NewDir returns a document lister for dir. pattern optionally restricts
// files by glob on the base name (e.g. "*.html"); empty matches everything.
func NewDir(dir, pattern string) *Dir {
	return &Dir{dir: dir, pattern: pattern}
}

// List enumerates the directory's documents in name order, so runs over the
// same input are processed in a stable sequence. The manifest file itself
// and dotfiles are never returned.
func (d *Dir) List(ctx context.Context) ([]datasource.Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	names, err := d.candidateNames()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]datasource.Artifact, 0, len(names))
	for _, name := range names {
		out = append(out, datasource.Artifact{
			Name:   name,
			Source: NewLocal(filepath.Join(d.dir, name)),
		})
	}
	return out, nil
}

func (d *Dir) candidateNames() ([]string, error) {
	manifest := filepath.Join(d.dir, ManifestName)
	if _, err := os.Stat(manifest); err == nil {
		return ReadList(manifest)
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == ManifestName || strings.HasPrefix(name, ".") {
			continue
		}
		if d.pattern != "" {
			ok, err := filepath.Match(d.pattern, name)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", d.pattern, err)
			}
			if !ok {
				continue
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// ReadList reads a text file line by line and returns a slice of strings
// containing non-empty, non-comment lines.
//
// Lines that are empty or start with '#' (after trimming leading/trailing
// whitespace) are skipped. This makes it convenient to maintain manifest
// files with comments and blank separators.
//
// The order of lines is preserved. On I/O error, a non-nil error is returned.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
