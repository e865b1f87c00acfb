package models

import (
	"time"
)

// Origin identifies which side of the bridge a path belongs to.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// EntryType distinguishes files from directories in listings.
type EntryType string

const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "directory"
)

// TransferDirection marks which way bytes flow in a transfer.
type TransferDirection string

const (
	DirectionDownload TransferDirection = "download"
	DirectionUpload   TransferDirection = "upload"
)

// EntryTypeOf maps a directory flag to the entry type used on the wire.
func EntryTypeOf(isDir bool) EntryType {
	if isDir {
		return EntryTypeDirectory
	}
	return EntryTypeFile
}

// FileEntry describes one file or directory in a listing.
//
// Path semantics:
//   - Paths are absolute and reported with forward slashes on both
//     origins so the UI can treat the two panes uniformly.
//
// Entries from the two origins are never merged into one list.
type FileEntry struct {
	Name    string    `json:"name"`
	Type    EntryType `json:"type"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	Mode    string    `json:"mode"`
	Path    string    `json:"path"`
}

// IsDir reports whether the entry is a directory.
func (e FileEntry) IsDir() bool { return e.Type == EntryTypeDirectory }

// LogLevel classifies session log entries.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogEntry is one line of a session's activity log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
}

// RootsInfo describes the browsing entry points of the host platform.
type RootsInfo struct {
	Platform    string   `json:"platform"`
	Roots       []string `json:"roots"`
	DefaultPath string   `json:"defaultPath"`
}

// Response common response structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
