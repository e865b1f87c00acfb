package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"

	"github.com/kennybix/Shuttle/pkg/service/fs"
	"github.com/kennybix/Shuttle/pkg/utils"
)

// ProgressFunc receives transfer progress. Percent values are integers,
// never decrease within one transfer, and 100 is reported only after the
// destination stream has closed successfully.
type ProgressFunc func(percent int, bytesSoFar, total int64)

// UploadSource names the bytes to upload. A non-empty LocalPath is a
// file on the local disk; otherwise InlineContent is staged to a
// temporary file named after InlineName before streaming, so both kinds
// of source share one streaming path.
type UploadSource struct {
	LocalPath     string
	InlineName    string
	InlineContent []byte
}

// DisplayName is the file name used in progress and completion events.
func (s UploadSource) DisplayName() string {
	if s.LocalPath != "" {
		return filepath.Base(s.LocalPath)
	}
	return s.InlineName
}

// Transferrer streams single files between the local disk and a remote
// SFTP endpoint. Transfers are independent of each other; concurrent
// jobs share no mutable state.
type Transferrer struct {
	logger       *slog.Logger
	local        *fs.LocalFileSystem
	stagingDir   string
	downloadsDir string
}

func NewTransferrer(stagingDir, downloadsDir string) *Transferrer {
	return &Transferrer{
		logger:       utils.GetLogger(),
		local:        fs.NewLocalFileSystem(),
		stagingDir:   stagingDir,
		downloadsDir: downloadsDir,
	}
}

// DownloadsDir is where downloads land when no explicit destination is given.
func (t *Transferrer) DownloadsDir() string { return t.downloadsDir }

// Download streams remotePath to localPath. An empty localPath lands the
// file in the downloads directory under its remote base name. On stream
// failure any partially written destination bytes are left in place for
// the caller to inspect or resume; only the error is reported.
func (t *Transferrer) Download(ctx context.Context, cli *sftp.Client, remotePath, localPath string, progress ProgressFunc) (string, error) {
	rfs, err := fs.NewSFTPFileSystem(cli)
	if err != nil {
		return "", errors.Wrapf(ErrTransferStream, "%v", err)
	}

	st, err := rfs.Stat(ctx, remotePath)
	if err != nil {
		return "", errors.Wrapf(ErrRemoteFileMissing, "stat %s: %v", remotePath, err)
	}
	if st.IsDir() {
		return "", errors.Wrapf(ErrTransferStream, "%s is a directory", remotePath)
	}

	dest := localPath
	if dest == "" {
		dest = filepath.Join(t.downloadsDir, utils.SanitizeFilename(st.Name))
	}

	r, err := rfs.OpenRead(ctx, remotePath)
	if err != nil {
		return "", errors.Wrapf(ErrTransferStream, "open remote %s: %v", remotePath, err)
	}
	defer r.Close()

	w, err := t.local.OpenWrite(ctx, dest)
	if err != nil {
		return "", errors.Wrapf(ErrTransferStream, "open local %s: %v", dest, err)
	}

	if err := streamWithProgress(w, r, st.Size, progress); err != nil {
		return "", errors.Wrapf(ErrTransferStream, "download %s: %v", remotePath, err)
	}
	return dest, nil
}

// Upload streams the source to remotePath. A staged temporary file, when
// one was created for inline content, is removed whatever the outcome.
func (t *Transferrer) Upload(ctx context.Context, cli *sftp.Client, src UploadSource, remotePath string, progress ProgressFunc) error {
	localPath := src.LocalPath
	if localPath == "" {
		staged, err := t.stageInline(src)
		if err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(staged); err != nil {
				t.logger.Warn("failed to remove staged upload", "path", staged, "error", err)
			}
		}()
		localPath = staged
	}

	st, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrapf(ErrLocalFileMissing, "stat %s: %v", localPath, err)
	}
	if st.IsDir() {
		return errors.Wrapf(ErrTransferStream, "%s is a directory", localPath)
	}

	r, err := t.local.OpenRead(ctx, localPath)
	if err != nil {
		return errors.Wrapf(ErrLocalFileMissing, "open %s: %v", localPath, err)
	}
	defer r.Close()

	rfs, err := fs.NewSFTPFileSystem(cli)
	if err != nil {
		return errors.Wrapf(ErrTransferStream, "%v", err)
	}
	w, err := rfs.OpenWrite(ctx, remotePath)
	if err != nil {
		return errors.Wrapf(ErrTransferStream, "open remote %s: %v", remotePath, err)
	}

	if err := streamWithProgress(w, r, st.Size(), progress); err != nil {
		return errors.Wrapf(ErrTransferStream, "upload to %s: %v", remotePath, err)
	}
	return nil
}

// stageInline materializes inline content under the staging directory.
func (t *Transferrer) stageInline(src UploadSource) (string, error) {
	if src.InlineName == "" {
		return "", errors.Wrap(ErrLocalFileMissing, "inline upload without a file name")
	}
	if err := os.MkdirAll(t.stagingDir, 0o700); err != nil {
		return "", errors.Wrapf(ErrTransferStream, "create staging dir: %v", err)
	}
	staged := filepath.Join(t.stagingDir, uuid.NewString()+"-"+utils.SanitizeFilename(src.InlineName))
	if err := os.WriteFile(staged, src.InlineContent, 0o600); err != nil {
		return "", errors.Wrapf(ErrTransferStream, "stage inline content: %v", err)
	}
	return staged, nil
}

// streamWithProgress pipes r into w, reporting capped monotonic progress,
// and emits the single 100 only once the destination closed cleanly.
func streamWithProgress(w io.WriteCloser, r io.Reader, total int64, progress ProgressFunc) error {
	pw := &progressWriter{w: w, total: total, onProgress: progress}

	_, copyErr := io.Copy(pw, r)
	closeErr := w.Close()

	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}

	if progress != nil {
		progress(100, pw.written, total)
	}
	return nil
}

// progressWriter counts written bytes and reports percent after each
// chunk. In-stream percents are capped at 99 so 100 cannot precede a
// failing close.
type progressWriter struct {
	w          io.Writer
	total      int64
	written    int64
	lastPct    int
	onProgress ProgressFunc
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 {
		pw.written += int64(n)
		pw.report()
	}
	return n, err
}

func (pw *progressWriter) report() {
	if pw.onProgress == nil {
		return
	}
	pct := percentOf(pw.written, pw.total)
	if pct > 99 {
		pct = 99
	}
	if pct > pw.lastPct {
		pw.lastPct = pct
		pw.onProgress(pct, pw.written, pw.total)
	}
}

func percentOf(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
