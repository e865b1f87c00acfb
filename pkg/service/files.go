package service

import (
	"context"
	"log/slog"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"

	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/service/fs"
	"github.com/kennybix/Shuttle/pkg/utils"
)

// FileService produces unified listings from either side of the bridge
// and applies directory/file mutations. Remote operations take the
// session's SFTP handle explicitly; connection policy stays with the
// caller.
type FileService struct {
	logger *slog.Logger
	local  *fs.LocalFileSystem
}

func NewFileService() *FileService {
	return &FileService{
		logger: utils.GetLogger(),
		local:  fs.NewLocalFileSystem(),
	}
}

// ListLocal lists a local directory. An unlistable path falls back once
// to the platform default; fellBack reports that substitution so callers
// can log a warning. If the default itself fails the error is surfaced
// and no further fallback is attempted.
func (f *FileService) ListLocal(ctx context.Context, p string, includeHidden bool) (resp *fs.ListDirResponse, parent string, fellBack bool, err error) {
	def := f.DefaultLocalPath(ctx)

	target := strings.TrimSpace(p)
	if target == "" {
		target = def
	}

	opts := fs.ListDirOptions{IncludeHidden: includeHidden}
	resp, err = f.local.ListDir(ctx, target, opts)
	if err != nil && target != def {
		f.logger.Warn("local listing failed, using default path", "path", target, "default", def, "error", err)
		resp, err = f.local.ListDir(ctx, def, opts)
		fellBack = true
	}
	if err != nil {
		return nil, "", fellBack, errors.Wrapf(ErrLocalListing, "%v", err)
	}
	return resp, parentPath(resp.Path), fellBack, nil
}

// ListRemote lists a remote directory. There is no fallback path; remote
// failures are reported as-is.
func (f *FileService) ListRemote(ctx context.Context, cli *sftp.Client, p string, includeHidden bool) (*fs.ListDirResponse, string, error) {
	rfs, err := fs.NewSFTPFileSystem(cli)
	if err != nil {
		return nil, "", errors.Wrapf(ErrRemoteListing, "%v", err)
	}
	resp, err := rfs.ListDir(ctx, p, fs.ListDirOptions{IncludeHidden: includeHidden})
	if err != nil {
		return nil, "", errors.Wrapf(ErrRemoteListing, "list %s: %v", p, err)
	}
	return resp, parentPath(resp.Path), nil
}

// CreateDir creates a directory through the given filesystem.
func (f *FileService) CreateDir(ctx context.Context, fsys fs.FileSystem, p string) error {
	if err := fsys.MkdirAll(ctx, p); err != nil {
		return errors.Wrapf(ErrMutationFailed, "create dir %s: %v", p, err)
	}
	return nil
}

// Delete removes a file or directory through the given filesystem.
func (f *FileService) Delete(ctx context.Context, fsys fs.FileSystem, p string, typ models.EntryType) error {
	if err := fsys.Remove(ctx, p, typ); err != nil {
		return errors.Wrapf(ErrMutationFailed, "delete %s: %v", p, err)
	}
	return nil
}

// Local returns the local filesystem adapter.
func (f *FileService) Local() *fs.LocalFileSystem { return f.local }

// DefaultLocalPath is the directory listed when no explicit local path
// is available, typically the user's home.
func (f *FileService) DefaultLocalPath(ctx context.Context) string {
	p, err := f.local.Pwd(ctx)
	if err != nil || p == "" {
		return "/"
	}
	return p
}

// LocalRoots reports the platform's browsing entry points. On Windows
// that is the set of present drive letters; elsewhere it is the
// filesystem root plus the user's home.
func (f *FileService) LocalRoots(ctx context.Context) models.RootsInfo {
	info := models.RootsInfo{
		Platform:    runtime.GOOS,
		DefaultPath: f.DefaultLocalPath(ctx),
	}

	if runtime.GOOS == "windows" {
		for letter := 'A'; letter <= 'Z'; letter++ {
			drive := string(letter) + ":\\"
			if _, err := os.Stat(drive); err == nil {
				info.Roots = append(info.Roots, string(letter)+":/")
			}
		}
		if len(info.Roots) == 0 {
			info.Roots = []string{"C:/"}
		}
		return info
	}

	info.Roots = []string{"/"}
	if home := info.DefaultPath; home != "/" {
		info.Roots = append(info.Roots, home)
	}
	return info
}

// parentPath computes the breadcrumb parent of a slash-normalized
// absolute path. The root is its own parent.
func parentPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Dir(p)
}
