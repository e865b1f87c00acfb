package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.shuttle/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8171
// paths:
//   staging_dir: /tmp/shuttle-staging
//   downloads_dir: /home/me/.shuttle/downloads
//   web_dir: ./web
// limits:
//   max_upload_mb: 200
//   session_log: 500
// ssh:
//   dial_timeout_seconds: 30
//   keepalive_seconds: 30
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server ServerConfig `yaml:"server"`
	Paths  PathsConfig  `yaml:"paths"`
	Limits LimitsConfig `yaml:"limits"`
	SSH    SSHConfig    `yaml:"ssh"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type PathsConfig struct {
	StagingDir   *string `yaml:"staging_dir"`
	DownloadsDir *string `yaml:"downloads_dir"`
	WebDir       *string `yaml:"web_dir"`
}

type LimitsConfig struct {
	MaxUploadMB *int `yaml:"max_upload_mb"`
	SessionLog  *int `yaml:"session_log"`
}

type SSHConfig struct {
	DialTimeoutSeconds *int `yaml:"dial_timeout_seconds"`
	KeepaliveSeconds   *int `yaml:"keepalive_seconds"`
}

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8171
	DefaultMaxUploadMB     = 200
	DefaultSessionLog      = 500
	DefaultDialTimeoutSecs = 30
	DefaultKeepaliveSecs   = 30
	DefaultWebDir          = "web"
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".shuttle")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.shuttle/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}
	// Defaults are applied via the accessor helpers.

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if cfg.MaxUploadBytes() <= 0 {
		return nil, "", fmt.Errorf("invalid limits.max_upload_mb in %s", configFile)
	}
	if cfg.SessionLogCap() <= 0 {
		return nil, "", fmt.Errorf("invalid limits.session_log in %s", configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Limits: LimitsConfig{MaxUploadMB: ptr(DefaultMaxUploadMB), SessionLog: ptr(DefaultSessionLog)},
		SSH:    SSHConfig{DialTimeoutSeconds: ptr(DefaultDialTimeoutSecs), KeepaliveSeconds: ptr(DefaultKeepaliveSecs)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil {
		return DefaultHost
	}
	if c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil {
		return DefaultPort
	}
	if c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// StagingDir is where inline upload payloads and buffered HTTP uploads
// are written before they are streamed to their destination.
func (c *AppConfig) StagingDir() string {
	if c != nil && c.Paths.StagingDir != nil && strings.TrimSpace(*c.Paths.StagingDir) != "" {
		return *c.Paths.StagingDir
	}
	return filepath.Join(os.TempDir(), "shuttle-staging")
}

// DownloadsDir is where downloaded files land when the client does not
// name an explicit destination; the download endpoint serves from here.
func (c *AppConfig) DownloadsDir() string {
	if c != nil && c.Paths.DownloadsDir != nil && strings.TrimSpace(*c.Paths.DownloadsDir) != "" {
		return *c.Paths.DownloadsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "shuttle-downloads")
	}
	return filepath.Join(home, ".shuttle", "downloads")
}

// WebDir is the optional on-disk directory with the built UI.
func (c *AppConfig) WebDir() string {
	if c != nil && c.Paths.WebDir != nil && strings.TrimSpace(*c.Paths.WebDir) != "" {
		return *c.Paths.WebDir
	}
	return DefaultWebDir
}

func (c *AppConfig) MaxUploadBytes() int64 {
	mb := DefaultMaxUploadMB
	if c != nil && c.Limits.MaxUploadMB != nil {
		mb = *c.Limits.MaxUploadMB
	}
	return int64(mb) * 1024 * 1024
}

// SessionLogCap is the number of log entries retained per session.
func (c *AppConfig) SessionLogCap() int {
	if c != nil && c.Limits.SessionLog != nil {
		return *c.Limits.SessionLog
	}
	return DefaultSessionLog
}

func (c *AppConfig) DialTimeoutSeconds() int {
	if c != nil && c.SSH.DialTimeoutSeconds != nil && *c.SSH.DialTimeoutSeconds > 0 {
		return *c.SSH.DialTimeoutSeconds
	}
	return DefaultDialTimeoutSecs
}

func (c *AppConfig) KeepaliveSeconds() int {
	if c != nil && c.SSH.KeepaliveSeconds != nil && *c.SSH.KeepaliveSeconds > 0 {
		return *c.SSH.KeepaliveSeconds
	}
	return DefaultKeepaliveSecs
}

func ptr[T any](v T) *T { return &v }
