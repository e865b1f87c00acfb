package service

import "github.com/pkg/errors"

// Error kinds surfaced to gateway clients. Wrap with errors.Wrapf to add
// detail and test with errors.Is.
var (
	ErrNotConnected      = errors.New("no active connection")
	ErrSSHConnectFailed  = errors.New("ssh connection failed")
	ErrSFTPInitFailed    = errors.New("sftp subsystem init failed")
	ErrRemoteListing     = errors.New("remote listing failed")
	ErrLocalListing      = errors.New("local listing failed")
	ErrRemoteFileMissing = errors.New("remote file not found")
	ErrLocalFileMissing  = errors.New("local file not found")
	ErrTransferStream    = errors.New("transfer stream error")
	ErrMutationFailed    = errors.New("mutation failed")
	ErrCommandExec       = errors.New("command execution failed")
)
