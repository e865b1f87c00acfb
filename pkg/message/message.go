// Package message defines the inbound command protocol of the gateway.
//
// Every message is a JSON object with a "type" discriminator and its
// payload fields at the top level, e.g.
//
//	{"type": "list-remote", "path": "/var/log"}
package message

import (
	"encoding/json"
	"fmt"

	"github.com/kennybix/Shuttle/pkg/models"
)

// Message is implemented by every inbound gateway command.
type Message interface {
	MessageType() string
}

const (
	TypeConnect    = "connect"
	TypeDisconnect = "disconnect"
	TypeListLocal  = "list-local"
	TypeListRemote = "list-remote"
	TypeLocalRoots = "get-local-roots"
	TypeDownload   = "download"
	TypeUpload     = "upload"
	TypeCreateDir  = "create-dir"
	TypeDelete     = "delete"
	TypeExec       = "exec"
	TypeClearLog   = "clear-log"
)

// Connect opens the SSH transport and SFTP subsystem for this session.
type Connect struct {
	Host       string `json:"host"`
	Port       int    `json:"port"` // 0 means 22
	Username   string `json:"username"`
	PrivateKey string `json:"privateKey"`
	Passphrase string `json:"passphrase,omitempty"`
}

func (Connect) MessageType() string { return TypeConnect }

// Disconnect tears down the session's connection if one is up.
type Disconnect struct{}

func (Disconnect) MessageType() string { return TypeDisconnect }

// ListLocal requests a listing of a local directory. An empty path means
// the platform default.
type ListLocal struct {
	Path          string `json:"path"`
	IncludeHidden bool   `json:"includeHidden"`
}

func (ListLocal) MessageType() string { return TypeListLocal }

// ListRemote requests a listing of a remote directory.
type ListRemote struct {
	Path          string `json:"path"`
	IncludeHidden bool   `json:"includeHidden"`
}

func (ListRemote) MessageType() string { return TypeListRemote }

// LocalRoots requests the platform's browsing roots.
type LocalRoots struct{}

func (LocalRoots) MessageType() string { return TypeLocalRoots }

// Download streams a remote file to local disk. An empty LocalPath lands
// the file in the configured downloads directory.
type Download struct {
	RemotePath string `json:"remotePath"`
	LocalPath  string `json:"localPath,omitempty"`
}

func (Download) MessageType() string { return TypeDownload }

// Upload streams a file to the remote side. The source is either a local
// path or an inline base64 payload named by Name; exactly one must be set.
// RemotePath is the destination file path; a trailing slash means a
// directory to upload into under the source name.
type Upload struct {
	LocalPath  string `json:"localPath,omitempty"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content,omitempty"`
	RemotePath string `json:"remotePath"`
}

func (Upload) MessageType() string { return TypeUpload }

// CreateDir creates a directory on the given side.
type CreateDir struct {
	Origin models.Origin `json:"origin"`
	Path   string        `json:"path"`
}

func (CreateDir) MessageType() string { return TypeCreateDir }

// Delete removes a file or directory on the given side. EntryType declares
// what the caller believes the path is; the key is "entryType" because
// "type" is taken by the envelope discriminator.
type Delete struct {
	Origin    models.Origin    `json:"origin"`
	Path      string           `json:"path"`
	EntryType models.EntryType `json:"entryType"`
}

func (Delete) MessageType() string { return TypeDelete }

// Exec runs a command on the remote host over the SSH transport.
type Exec struct {
	Command string `json:"command"`
}

func (Exec) MessageType() string { return TypeExec }

// ClearLog empties the session's activity log.
type ClearLog struct{}

func (ClearLog) MessageType() string { return TypeClearLog }

// ParseMessage decodes one inbound message. Unknown types are an error so the
// gateway can report them without tearing down the connection.
func ParseMessage(raw []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse message envelope: %w", err)
	}

	var msg Message
	switch head.Type {
	case TypeConnect:
		msg = &Connect{}
	case TypeDisconnect:
		msg = &Disconnect{}
	case TypeListLocal:
		msg = &ListLocal{}
	case TypeListRemote:
		msg = &ListRemote{}
	case TypeLocalRoots:
		msg = &LocalRoots{}
	case TypeDownload:
		msg = &Download{}
	case TypeUpload:
		msg = &Upload{}
	case TypeCreateDir:
		msg = &CreateDir{}
	case TypeDelete:
		msg = &Delete{}
	case TypeExec:
		msg = &Exec{}
	case TypeClearLog:
		msg = &ClearLog{}
	default:
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("parse %s message: %w", head.Type, err)
	}
	return msg, nil
}
