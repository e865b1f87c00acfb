package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"github.com/kennybix/Shuttle/pkg/models"
)

// SFTPFileSystem implements FileSystem using an existing *sftp.Client.
//
// Connection provisioning (SSH auth, keepalive, teardown) lives outside
// this package; callers hand in a ready client per operation.
type SFTPFileSystem struct {
	client *sftp.Client
}

func NewSFTPFileSystem(client *sftp.Client) (*SFTPFileSystem, error) {
	if client == nil {
		return nil, fmt.Errorf("sftp client is nil")
	}
	return &SFTPFileSystem{client: client}, nil
}

func (s *SFTPFileSystem) ListDir(ctx context.Context, p string, opts ListDirOptions) (*ListDirResponse, error) {
	_ = ctx
	pathToList, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	infos, err := s.client.ReadDir(pathToList)
	if err != nil {
		return nil, err
	}

	entries := make([]models.FileEntry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if name == "." || name == ".." {
			continue
		}
		if !opts.IncludeHidden && isHiddenName(name) {
			continue
		}
		entries = append(entries, models.FileEntry{
			Name:    name,
			Type:    models.EntryTypeOf(fi.IsDir()),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			Mode:    fi.Mode().String(),
			Path:    joinRemote(pathToList, name),
		})
	}

	sortEntries(entries)

	return &ListDirResponse{Path: pathToList, Entries: entries}, nil
}

func (s *SFTPFileSystem) Stat(ctx context.Context, p string) (*models.FileEntry, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	fi, err := s.client.Stat(remotePath)
	if err != nil {
		return nil, err
	}
	name := path.Base(remotePath)
	return &models.FileEntry{
		Name:    name,
		Type:    models.EntryTypeOf(fi.IsDir()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode().String(),
		Path:    remotePath,
	}, nil
}

func (s *SFTPFileSystem) MkdirAll(ctx context.Context, p string) error {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return err
	}
	return s.client.MkdirAll(remotePath)
}

// Remove deletes remotePath. Deletion dispatches on the type the caller
// declares instead of an extra round trip to stat the path first.
func (s *SFTPFileSystem) Remove(ctx context.Context, p string, typ models.EntryType) error {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return err
	}
	if typ == models.EntryTypeDirectory {
		return s.client.RemoveDirectory(remotePath)
	}
	return s.client.Remove(remotePath)
}

func (s *SFTPFileSystem) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	return s.client.Open(remotePath)
}

func (s *SFTPFileSystem) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	_ = ctx
	remotePath, err := normalizeRemotePath(p)
	if err != nil {
		return nil, err
	}
	_ = s.client.MkdirAll(path.Dir(remotePath))
	return s.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *SFTPFileSystem) Pwd(ctx context.Context) (string, error) {
	_ = ctx
	wd, err := s.client.Getwd()
	if err != nil || strings.TrimSpace(wd) == "" {
		return "/", nil
	}
	wd = filepath.ToSlash(wd)
	if !strings.HasPrefix(wd, "/") {
		return "/", nil
	}
	return wd, nil
}

var _ FileSystem = (*SFTPFileSystem)(nil)
var _ PwdProvider = (*SFTPFileSystem)(nil)

func normalizeRemotePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/", nil
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path must be absolute")
	}
	return p, nil
}

// joinRemote joins a directory and a base path, ensuring a single '/' separator.
func joinRemote(dir string, base string) string {
	if dir == "" {
		return "/" + strings.TrimPrefix(base, "/")
	}
	if base == "" {
		return dir
	}
	if strings.HasSuffix(dir, "/") {
		return dir + strings.TrimPrefix(base, "/")
	}
	return dir + "/" + strings.TrimPrefix(base, "/")
}
