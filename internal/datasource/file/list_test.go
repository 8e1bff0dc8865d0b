package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	content := `
# comment line
https://example.com
   # indented comment
https://example.org

   https://example.net
`
	path := writeTempFile(t, content)

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}

	want := []string{
		"https://example.com",
		"https://example.org",
		"https://example.net",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadList(%q) = %#v, want %#v", path, got, want)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "")
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := ReadList("does-not-exist-12345.txt")
	if err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func artifactNames(t *testing.T, d *Dir) []string {
	t.Helper()
	arts, err := d.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	names := make([]string, 0, len(arts))
	for _, a := range arts {
		names = append(names, a.Name)
	}
	return names
}

func TestDirList_SortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.html", "a.html", "notes.json", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	got := artifactNames(t, NewDir(dir, ""))
	want := []string{"a.html", "b.html", "notes.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List names = %#v, want %#v", got, want)
	}

	got = artifactNames(t, NewDir(dir, "*.html"))
	want = []string{"a.html", "b.html"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List names with pattern = %#v, want %#v", got, want)
	}
}

func TestDirList_ManifestWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.html", "b.html", "c.html"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	manifest := "# only these two\nc.html\na.html\n"
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}

	got := artifactNames(t, NewDir(dir, ""))
	want := []string{"a.html", "c.html"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List names = %#v, want %#v", got, want)
	}
}

func TestDirList_OpensContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc.json"), []byte(`{"id":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	arts, err := NewDir(dir, "").List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(arts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(arts))
	}
	rc, err := arts[0].Source.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != `{"id":1}` {
		t.Fatalf("content = %q", body)
	}
}
