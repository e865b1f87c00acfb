package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kennybix/Shuttle/pkg/models"
)

func mustWriteFile(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLocalListDir_FiltersHiddenAndSortsDirsFirst(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "b.txt"), "b")
	mustWriteFile(t, filepath.Join(root, "Alpha.txt"), "a")
	mustWriteFile(t, filepath.Join(root, ".secret"), "s")
	mustWriteFile(t, filepath.Join(root, "$RECYCLE.BIN"), "w")
	if err := os.Mkdir(filepath.Join(root, "zdir"), 0o700); err != nil {
		t.Fatal(err)
	}

	l := NewLocalFileSystem()
	resp, err := l.ListDir(context.Background(), root, ListDirOptions{})
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}

	got := make([]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		got = append(got, e.Name)
	}
	want := []string{"zdir", "Alpha.txt", "b.txt"}
	if len(got) != len(want) {
		t.Fatalf("ListDir() entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListDir() entries = %v, want %v", got, want)
		}
	}
	if resp.Entries[0].Type != models.EntryTypeDirectory {
		t.Fatalf("first entry type = %q, want directory", resp.Entries[0].Type)
	}

	// Hidden entries come back when requested.
	resp, err = l.ListDir(context.Background(), root, ListDirOptions{IncludeHidden: true})
	if err != nil {
		t.Fatalf("ListDir(hidden) error = %v", err)
	}
	if len(resp.Entries) != 5 {
		t.Fatalf("ListDir(hidden) returned %d entries, want 5", len(resp.Entries))
	}
}

func TestLocalListDir_FileIsNotADirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	mustWriteFile(t, file, "x")

	l := NewLocalFileSystem()
	if _, err := l.ListDir(context.Background(), file, ListDirOptions{}); err == nil {
		t.Fatalf("expected error listing a regular file")
	}
}

func TestLocalRemove_RemovesDirectoriesRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	mustWriteFile(t, filepath.Join(nested, "f.txt"), "x")

	l := NewLocalFileSystem()
	if err := l.Remove(context.Background(), filepath.Join(root, "a"), models.EntryTypeDirectory); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Fatalf("directory still present after Remove: %v", err)
	}
}

func TestLocalRemove_MissingPath(t *testing.T) {
	root := t.TempDir()
	l := NewLocalFileSystem()
	if err := l.Remove(context.Background(), filepath.Join(root, "nope"), models.EntryTypeFile); err == nil {
		t.Fatalf("expected error removing a missing path")
	}
}

func TestLocalOpenWrite_CreatesParentsAndTruncates(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "deep", "dir", "out.txt")

	l := NewLocalFileSystem()
	w, err := l.OpenWrite(context.Background(), target)
	if err != nil {
		t.Fatalf("OpenWrite() error = %v", err)
	}
	if _, err := w.Write([]byte("first version")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	w, err = l.OpenWrite(context.Background(), target)
	if err != nil {
		t.Fatalf("OpenWrite() again error = %v", err)
	}
	if _, err := w.Write([]byte("v2")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, err := l.OpenRead(context.Background(), target)
	if err != nil {
		t.Fatalf("OpenRead() error = %v", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(b) != "v2" {
		t.Fatalf("content = %q, want %q", string(b), "v2")
	}
}

func TestLocalStat(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	mustWriteFile(t, file, "abc")

	l := NewLocalFileSystem()
	fe, err := l.Stat(context.Background(), file)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if fe.Name != "f.txt" || fe.Type != models.EntryTypeFile || fe.Size != 3 {
		t.Fatalf("Stat() = %+v", fe)
	}
}

func TestLocalPwd_ReturnsAbsolutePath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := NewLocalFileSystem()
	p, err := l.Pwd(context.Background())
	if err != nil {
		t.Fatalf("Pwd() error = %v", err)
	}
	if p == "" || !filepath.IsAbs(filepath.FromSlash(p)) {
		t.Fatalf("Pwd() = %q, want absolute path", p)
	}
}
