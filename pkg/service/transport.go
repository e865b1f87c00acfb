package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/kennybix/Shuttle/pkg/utils"
)

// ConnState is the lifecycle state of a session's remote transport.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Modern algorithm allow-lists. Legacy suites (ssh-rsa with SHA-1, CBC
// ciphers, MD5/SHA-1 MACs) are deliberately absent.
var (
	allowedKeyExchanges = []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
	}
	allowedCiphers = []string{
		"chacha20-poly1305@openssh.com",
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
	}
	allowedMACs = []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha2-512",
	}
	allowedHostKeyAlgos = []string{
		"ssh-ed25519",
		"ecdsa-sha2-nistp256",
		"ecdsa-sha2-nistp384",
		"ecdsa-sha2-nistp521",
		"rsa-sha2-512",
		"rsa-sha2-256",
	}
)

// ConnectOptions carries the credentials for one connection attempt.
// Authentication is key-only.
type ConnectOptions struct {
	Host       string
	Port       int // 0 means 22
	Username   string
	PrivateKey []byte
	Passphrase string
}

// Transport owns one SSH connection plus its SFTP subsystem for a single
// session. The state machine is disconnected -> connecting -> connected
// -> disconnected; invalid transitions are rejected rather than guarded
// around. Reconnection is never automatic: when the connection drops the
// transport returns to disconnected and the client must connect again.
type Transport struct {
	logger      *slog.Logger
	dialTimeout time.Duration
	keepalive   time.Duration

	mu     sync.Mutex
	state  ConnState
	client *ssh.Client
	sftp   *sftp.Client
	host   string
	user   string
	stop   chan struct{}

	onDrop func()
}

func NewTransport(dialTimeout, keepalive time.Duration) *Transport {
	return &Transport{
		logger:      utils.GetLogger(),
		dialTimeout: dialTimeout,
		keepalive:   keepalive,
		state:       StateDisconnected,
	}
}

// OnDrop registers a callback fired at most once per established
// connection, when that connection ends without an explicit Disconnect.
func (t *Transport) OnDrop(fn func()) {
	t.mu.Lock()
	t.onDrop = fn
	t.mu.Unlock()
}

func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Host returns the host of the current connection, empty when disconnected.
func (t *Transport) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.host
}

// Username returns the user of the current connection, empty when disconnected.
func (t *Transport) Username() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user
}

// SFTP returns the file-transfer subsystem handle of the current
// connection, or ErrNotConnected.
func (t *Transport) SFTP() (*sftp.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateConnected || t.sftp == nil {
		return nil, ErrNotConnected
	}
	return t.sftp, nil
}

// Connect dials the host, authenticates with the supplied key, and brings
// up the SFTP subsystem. The transport is marked connected only once both
// steps succeed; a subsystem failure tears the fresh connection down
// again so no half-open state survives.
func (t *Transport) Connect(ctx context.Context, opts ConnectOptions) error {
	t.mu.Lock()
	if t.state != StateDisconnected {
		state := t.state
		t.mu.Unlock()
		return errors.Wrapf(ErrSSHConnectFailed, "connect requested while %s", state)
	}
	t.state = StateConnecting
	t.mu.Unlock()

	client, err := t.dial(ctx, opts)
	if err != nil {
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()
		return errors.Wrapf(ErrSSHConnectFailed, "%v", err)
	}

	sftpCli, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()
		return errors.Wrapf(ErrSFTPInitFailed, "%v", err)
	}

	stop := make(chan struct{})
	t.mu.Lock()
	t.client = client
	t.sftp = sftpCli
	t.host = opts.Host
	t.user = opts.Username
	t.stop = stop
	t.state = StateConnected
	t.mu.Unlock()

	t.logger.Info("ssh connected", "host", opts.Host, "user", opts.Username)

	go t.keepaliveLoop(client, opts.Host, stop)
	go t.watchClose(client, stop)

	return nil
}

// Disconnect tears down the connection if one is established. It reports
// whether anything was actually torn down, so callers can decide whether
// a disconnected notification is due. Safe to call repeatedly.
func (t *Transport) Disconnect() bool {
	t.mu.Lock()
	if t.state != StateConnected || t.client == nil {
		t.mu.Unlock()
		return false
	}
	client := t.client
	sftpCli := t.sftp
	stop := t.stop
	t.client = nil
	t.sftp = nil
	t.stop = nil
	t.host = ""
	t.user = ""
	t.state = StateDisconnected
	t.mu.Unlock()

	// Closing stop before the clients lets the watcher goroutines tell an
	// intentional teardown apart from a dropped connection.
	if stop != nil {
		close(stop)
	}
	if sftpCli != nil {
		_ = sftpCli.Close()
	}
	_ = client.Close()

	t.logger.Info("ssh disconnected")
	return true
}

// Exec runs one remote command. Stdout is streamed through onStdout and
// also accumulated; stderr is streamed through onStderr without ending
// the command. The return values carry the exit code and the full stdout.
func (t *Transport) Exec(ctx context.Context, command string, onStdout, onStderr func(chunk string)) (int, string, error) {
	t.mu.Lock()
	client := t.client
	connected := t.state == StateConnected && client != nil
	t.mu.Unlock()
	if !connected {
		return 0, "", ErrNotConnected
	}

	session, err := client.NewSession()
	if err != nil {
		return 0, "", errors.Wrapf(ErrCommandExec, "open session: %v", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return 0, "", errors.Wrapf(ErrCommandExec, "stdout pipe: %v", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return 0, "", errors.Wrapf(ErrCommandExec, "stderr pipe: %v", err)
	}

	if err := session.Start(command); err != nil {
		return 0, "", errors.Wrapf(ErrCommandExec, "start %q: %v", command, err)
	}

	var full strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpStream(stdout, func(chunk string) {
			full.WriteString(chunk)
			if onStdout != nil {
				onStdout(chunk)
			}
		})
	}()
	go func() {
		defer wg.Done()
		pumpStream(stderr, onStderr)
	}()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	waitErr := session.Wait()
	wg.Wait()
	close(done)

	if waitErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitStatus(), full.String(), nil
		}
		return 0, full.String(), errors.Wrapf(ErrCommandExec, "%v", waitErr)
	}
	return 0, full.String(), nil
}

func (t *Transport) dial(ctx context.Context, opts ConnectOptions) (*ssh.Client, error) {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		return nil, fmt.Errorf("ssh host not specified")
	}
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		return nil, fmt.Errorf("ssh username not specified")
	}
	port := opts.Port
	if port <= 0 {
		port = 22
	}

	signer, err := parsePrivateKey(opts.PrivateKey, opts.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	sshConfig := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
			// Some servers run a keyboard-interactive round even for
			// key-based logins. Answer every challenge with an empty set.
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				return make([]string, len(questions)), nil
			}),
		},
		HostKeyCallback:   ssh.InsecureIgnoreHostKey(),
		HostKeyAlgorithms: allowedHostKeyAlgos,
		Timeout:           t.dialTimeout,
		Config: ssh.Config{
			KeyExchanges: allowedKeyExchanges,
			Ciphers:      allowedCiphers,
			MACs:         allowedMACs,
		},
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	dialer := &net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh tcp: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// keepaliveLoop probes the connection until it stops answering or the
// transport is torn down. Detection only; it never reconnects.
func (t *Transport) keepaliveLoop(client *ssh.Client, host string, stop <-chan struct{}) {
	interval := t.keepalive
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Warn("ssh keepalive failed", "host", host, "error", err)
				t.dropped(client)
				return
			}
		case <-stop:
			return
		}
	}
}

// watchClose waits for the connection to end on its own.
func (t *Transport) watchClose(client *ssh.Client, stop <-chan struct{}) {
	err := client.Wait()
	select {
	case <-stop:
		return
	default:
	}
	if err != nil && err != io.EOF {
		t.logger.Warn("ssh connection ended", "error", err)
	}
	t.dropped(client)
}

// dropped transitions to disconnected after an unexpected connection end.
// The client comparison makes late watcher wakeups from a previous
// connection harmless.
func (t *Transport) dropped(client *ssh.Client) {
	t.mu.Lock()
	if t.client != client || t.state != StateConnected {
		t.mu.Unlock()
		return
	}
	sftpCli := t.sftp
	stop := t.stop
	t.client = nil
	t.sftp = nil
	t.stop = nil
	t.host = ""
	t.user = ""
	t.state = StateDisconnected
	fn := t.onDrop
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if sftpCli != nil {
		_ = sftpCli.Close()
	}
	_ = client.Close()

	if fn != nil {
		fn()
	}
}

func parsePrivateKey(keyData []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(keyData)
	if err == nil {
		return signer, nil
	}
	if passphrase == "" {
		return nil, err
	}
	return ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
}

func pumpStream(r io.Reader, fn func(string)) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && fn != nil {
			fn(string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}
