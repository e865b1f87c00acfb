package fs

import (
	"context"
	"io"
	"strings"

	"github.com/kennybix/Shuttle/pkg/models"
)

type ListDirResponse struct {
	Path    string             `json:"path"`
	Entries []models.FileEntry `json:"entries"`
}

type ListDirOptions struct {
	IncludeHidden bool
}

// FileSystem abstracts file operations over the local disk and a remote
// SFTP endpoint.
//
// Path semantics:
//   - Remote paths are absolute POSIX paths ('/' separated).
//   - Local paths are resolved against the host filesystem and reported
//     with forward slashes so the UI can treat both sides uniformly.
type FileSystem interface {
	ListDir(ctx context.Context, path string, opts ListDirOptions) (*ListDirResponse, error)
	Stat(ctx context.Context, path string) (*models.FileEntry, error)
	MkdirAll(ctx context.Context, path string) error

	// Remove deletes path. The caller declares what it is deleting:
	// directories are removed as directories, files as files. Local
	// directory removal is recursive, remote removal is not.
	Remove(ctx context.Context, path string, typ models.EntryType) error

	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite creates or truncates path for writing, creating parent
	// directories as needed.
	OpenWrite(ctx context.Context, path string) (io.WriteCloser, error)
}

// Optional interface: implementations that can report a preferred starting directory.
// Returned path must be absolute.
type PwdProvider interface {
	Pwd(ctx context.Context) (string, error)
}

// isHiddenName reports whether a directory entry should be excluded from
// listings unless hidden entries were requested. Dot-prefixed names cover
// POSIX conventions; '$'-prefixed names cover Windows system directories
// such as $RECYCLE.BIN.
func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "$")
}
