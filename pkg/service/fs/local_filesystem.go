package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kennybix/Shuttle/pkg/models"
)

// LocalFileSystem implements FileSystem for the host filesystem.
//
// NOTE: This is NOT sandboxed.
type LocalFileSystem struct{}

func NewLocalFileSystem() *LocalFileSystem { return &LocalFileSystem{} }

func (l *LocalFileSystem) ListDir(ctx context.Context, p string, opts ListDirOptions) (*ListDirResponse, error) {
	_ = ctx
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	des, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	entries := make([]models.FileEntry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if name == "." || name == ".." {
			continue
		}
		if !opts.IncludeHidden && isHiddenName(name) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		child := filepath.ToSlash(filepath.Join(abs, name))
		entries = append(entries, models.FileEntry{
			Name:    name,
			Type:    models.EntryTypeOf(info.IsDir()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Mode:    info.Mode().String(),
			Path:    child,
		})
	}

	sortEntries(entries)

	return &ListDirResponse{Path: filepath.ToSlash(abs), Entries: entries}, nil
}

func (l *LocalFileSystem) Stat(ctx context.Context, p string) (*models.FileEntry, error) {
	_ = ctx
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(abs)
	if abs == "/" {
		name = "/"
	}
	return &models.FileEntry{
		Name:    name,
		Type:    models.EntryTypeOf(fi.IsDir()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode().String(),
		Path:    filepath.ToSlash(abs),
	}, nil
}

func (l *LocalFileSystem) MkdirAll(ctx context.Context, p string) error {
	_ = ctx
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o700)
}

// Remove deletes abs. Local deletion is recursive regardless of the
// declared type so non-empty directories go away in one operation.
func (l *LocalFileSystem) Remove(ctx context.Context, p string, typ models.EntryType) error {
	_ = ctx
	_ = typ
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

func (l *LocalFileSystem) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	_ = ctx
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

func (l *LocalFileSystem) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	_ = ctx
	abs, err := normalizeHostAbs(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
}

func (l *LocalFileSystem) Pwd(ctx context.Context) (string, error) {
	_ = ctx
	h, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(h) == "" {
		return "/", nil
	}
	return filepath.ToSlash(h), nil
}

// Verify interface implementations
var _ FileSystem = (*LocalFileSystem)(nil)
var _ PwdProvider = (*LocalFileSystem)(nil)

func normalizeHostAbs(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "."
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(abs), nil
}

func sortEntries(entries []models.FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
