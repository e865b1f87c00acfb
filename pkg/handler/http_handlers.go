package handler

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/service"
	"github.com/kennybix/Shuttle/pkg/utils"
)

// FileHandler serves the REST companions to the gateway: browser
// download hand-off, upload staging, and the local roots mirror.
type FileHandler struct {
	files        *service.FileService
	downloadsDir string
	stagingDir   string
	maxUpload    int64
}

func NewFileHandler(files *service.FileService, downloadsDir, stagingDir string, maxUpload int64) *FileHandler {
	return &FileHandler{
		files:        files,
		downloadsDir: downloadsDir,
		stagingDir:   stagingDir,
		maxUpload:    maxUpload,
	}
}

// Download serves one file from the downloads directory as a browser
// attachment. Only base names are accepted; anything else is a 404.
func (h *FileHandler) Download(c *gin.Context) {
	name := utils.SanitizeFilename(c.Param("name"))
	full := filepath.Join(h.downloadsDir, name)
	if fi, err := os.Stat(full); err != nil || fi.IsDir() {
		c.JSON(http.StatusNotFound, models.Response{Code: 404, Message: "file not found"})
		return
	}
	c.FileAttachment(full, name)
}

// Upload buffers one multipart file into the staging directory and
// returns the staged path, ready to be referenced as the local path of a
// gateway upload command.
func (h *FileHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		status := http.StatusBadRequest
		msg := "missing multipart field 'file'"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			msg = fmt.Sprintf("upload exceeds the %d byte limit", h.maxUpload)
		}
		c.JSON(status, models.Response{Code: status, Message: msg})
		return
	}
	defer func() { _ = file.Close() }()

	if err := os.MkdirAll(h.stagingDir, 0o700); err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}

	name := utils.SanitizeFilename(header.Filename)
	staged := filepath.Join(h.stagingDir, uuid.NewString()+"-"+name)
	out, err := os.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}

	_, copyErr := io.Copy(out, file)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(staged)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "staging write failed"})
		return
	}

	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: gin.H{
		"name":       header.Filename,
		"stagedPath": staged,
		"size":       header.Size,
	}})
}

// Roots mirrors the gateway's get-local-roots command for plain HTTP
// clients.
func (h *FileHandler) Roots(c *gin.Context) {
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: h.files.LocalRoots(c.Request.Context())})
}
