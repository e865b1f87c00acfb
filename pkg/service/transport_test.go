package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

func testPrivateKeyPEM(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("ssh.MarshalPrivateKey() error = %v", err)
	}
	return pem.EncodeToMemory(block)
}

func TestTransport_StartsDisconnected(t *testing.T) {
	tr := NewTransport(time.Second, time.Second)
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("State() = %q, want %q", got, StateDisconnected)
	}
	if _, err := tr.SFTP(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SFTP() error = %v, want ErrNotConnected", err)
	}
	if _, _, err := tr.Exec(context.Background(), "true", nil, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Exec() error = %v, want ErrNotConnected", err)
	}
}

func TestTransport_DisconnectIsIdempotent(t *testing.T) {
	tr := NewTransport(time.Second, time.Second)
	if tr.Disconnect() {
		t.Fatalf("Disconnect() on fresh transport reported teardown")
	}
	if tr.Disconnect() {
		t.Fatalf("second Disconnect() reported teardown")
	}
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("State() = %q, want %q", got, StateDisconnected)
	}
}

func TestTransport_ConnectRefused(t *testing.T) {
	tr := NewTransport(2*time.Second, time.Second)
	err := tr.Connect(context.Background(), ConnectOptions{
		Host:       "127.0.0.1",
		Port:       1,
		Username:   "nobody",
		PrivateKey: testPrivateKeyPEM(t),
	})
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if !errors.Is(err, ErrSSHConnectFailed) {
		t.Fatalf("Connect() error = %v, want ErrSSHConnectFailed", err)
	}
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("State() after failed connect = %q, want %q", got, StateDisconnected)
	}
}

func TestTransport_ConnectRejectsBadKey(t *testing.T) {
	tr := NewTransport(time.Second, time.Second)
	err := tr.Connect(context.Background(), ConnectOptions{
		Host:       "127.0.0.1",
		Port:       1,
		Username:   "nobody",
		PrivateKey: []byte("not a key"),
	})
	if !errors.Is(err, ErrSSHConnectFailed) {
		t.Fatalf("Connect() error = %v, want ErrSSHConnectFailed", err)
	}
}

func TestTransport_ConnectWhileBusy(t *testing.T) {
	tr := NewTransport(time.Second, time.Second)
	tr.mu.Lock()
	tr.state = StateConnecting
	tr.mu.Unlock()

	err := tr.Connect(context.Background(), ConnectOptions{Host: "h", Username: "u"})
	if !errors.Is(err, ErrSSHConnectFailed) {
		t.Fatalf("Connect() while connecting error = %v, want ErrSSHConnectFailed", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	plain := testPrivateKeyPEM(t)

	if _, err := parsePrivateKey(plain, ""); err != nil {
		t.Fatalf("parsePrivateKey(plain) error = %v", err)
	}
	if _, err := parsePrivateKey([]byte("garbage"), ""); err == nil {
		t.Fatalf("expected error for garbage key")
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("sekret"))
	if err != nil {
		t.Fatalf("ssh.MarshalPrivateKeyWithPassphrase() error = %v", err)
	}
	enc := pem.EncodeToMemory(block)

	if _, err := parsePrivateKey(enc, "sekret"); err != nil {
		t.Fatalf("parsePrivateKey(encrypted, passphrase) error = %v", err)
	}
	if _, err := parsePrivateKey(enc, ""); err == nil {
		t.Fatalf("expected error for encrypted key without passphrase")
	}
	if _, err := parsePrivateKey(enc, "wrong"); err == nil {
		t.Fatalf("expected error for wrong passphrase")
	}
}

func TestPumpStream(t *testing.T) {
	var got strings.Builder
	pumpStream(iotest.OneByteReader(strings.NewReader("chunked output")), func(chunk string) {
		got.WriteString(chunk)
	})
	if got.String() != "chunked output" {
		t.Fatalf("pumpStream collected %q", got.String())
	}

	// A nil sink must not panic.
	pumpStream(strings.NewReader("dropped"), nil)
}
