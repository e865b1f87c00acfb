package event

import (
	"time"

	"github.com/kennybix/Shuttle/pkg/models"
)

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	InitialSetup     = "initial-setup"
	LocalListing     = "local-listing"
	RemoteListing    = "remote-listing"
	Connected        = "connected"
	Disconnected     = "disconnected"
	ConnectError     = "connect-error"
	GenericError     = "generic-error"
	TransferProgress = "transfer-progress"
	DownloadComplete = "download-complete"
	UploadComplete   = "upload-complete"
	DirCreated       = "dir-created"
	FileDeleted      = "file-deleted"
	LogEntry         = "log-entry"
	CommandOutput    = "command-output"
	CommandError     = "command-error"
	CommandComplete  = "command-complete"
)

// ============================================================================
// Session Events
// ============================================================================

// InitialSetupEvent is the first event every client receives after the
// WebSocket upgrade.
type InitialSetupEvent struct {
	SessionID   string   `json:"sessionId"`
	Platform    string   `json:"platform"`
	Roots       []string `json:"roots"`
	DefaultPath string   `json:"defaultPath"`
}

func (e InitialSetupEvent) EventName() string { return InitialSetup }

// LogEntryEvent mirrors one appended session log line.
type LogEntryEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message"`
	Level     models.LogLevel `json:"level"`
}

func (e LogEntryEvent) EventName() string { return LogEntry }

// ============================================================================
// Listing Events
// ============================================================================

// LocalListingEvent carries one resolved local directory listing.
type LocalListingEvent struct {
	Path    string             `json:"path"`
	Parent  string             `json:"parent"`
	Entries []models.FileEntry `json:"entries"`
}

func (e LocalListingEvent) EventName() string { return LocalListing }

// RemoteListingEvent carries one remote directory listing.
type RemoteListingEvent struct {
	Path    string             `json:"path"`
	Parent  string             `json:"parent"`
	Entries []models.FileEntry `json:"entries"`
}

func (e RemoteListingEvent) EventName() string { return RemoteListing }

// ============================================================================
// Connection Events
// ============================================================================

// ConnectedEvent is emitted once the SSH transport and SFTP subsystem
// are both up.
type ConnectedEvent struct {
	Host     string `json:"host"`
	Username string `json:"username"`
}

func (e ConnectedEvent) EventName() string { return Connected }

// DisconnectedEvent is emitted when an established connection goes away,
// whether by request or by transport failure.
type DisconnectedEvent struct{}

func (e DisconnectedEvent) EventName() string { return Disconnected }

// ConnectErrorEvent is emitted when a connection attempt fails.
type ConnectErrorEvent struct {
	Message string `json:"message"`
}

func (e ConnectErrorEvent) EventName() string { return ConnectError }

// ErrorEvent reports any operation failure that is not a connect failure.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e ErrorEvent) EventName() string { return GenericError }

// ============================================================================
// Transfer Events
// ============================================================================

// TransferProgressEvent reports integer percent progress for one transfer.
// Percentages never decrease and 100 is reserved for the success path.
type TransferProgressEvent struct {
	TransferID string                   `json:"transferId"`
	Direction  models.TransferDirection `json:"direction"`
	File       string                   `json:"file"`
	Percent    int                      `json:"percent"`
	BytesSoFar int64                    `json:"bytesSoFar"`
	Total      int64                    `json:"total"`
}

func (e TransferProgressEvent) EventName() string { return TransferProgress }

// DownloadCompleteEvent is emitted after a download is fully on disk.
type DownloadCompleteEvent struct {
	TransferID string `json:"transferId"`
	File       string `json:"file"`
	LocalPath  string `json:"localPath"`
}

func (e DownloadCompleteEvent) EventName() string { return DownloadComplete }

// UploadCompleteEvent is emitted after an upload is fully written remotely.
type UploadCompleteEvent struct {
	TransferID string `json:"transferId"`
	File       string `json:"file"`
	RemotePath string `json:"remotePath"`
}

func (e UploadCompleteEvent) EventName() string { return UploadComplete }

// ============================================================================
// Mutation Events
// ============================================================================

// DirCreatedEvent is emitted when a directory is created on either side.
type DirCreatedEvent struct {
	Origin models.Origin `json:"origin"`
	Path   string        `json:"path"`
}

func (e DirCreatedEvent) EventName() string { return DirCreated }

// FileDeletedEvent is emitted when a file or directory is deleted on
// either side.
type FileDeletedEvent struct {
	Origin models.Origin `json:"origin"`
	Path   string        `json:"path"`
}

func (e FileDeletedEvent) EventName() string { return FileDeleted }

// ============================================================================
// Command Events
// ============================================================================

// CommandOutputEvent carries one chunk of stdout from a running command.
type CommandOutputEvent struct {
	Chunk string `json:"chunk"`
}

func (e CommandOutputEvent) EventName() string { return CommandOutput }

// CommandErrorEvent carries one chunk of stderr from a running command.
// Stderr does not terminate the command; the exit code decides success.
type CommandErrorEvent struct {
	Chunk string `json:"chunk"`
}

func (e CommandErrorEvent) EventName() string { return CommandError }

// CommandCompleteEvent is emitted exactly once per executed command.
type CommandCompleteEvent struct {
	ExitCode   int    `json:"exitCode"`
	FullOutput string `json:"fullOutput"`
}

func (e CommandCompleteEvent) EventName() string { return CommandComplete }
