// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/marklogic-admin-proxy/config.toml",
	"configs/config.toml",
}

// placeholderPassword is the value shipped in configs/config.example.toml.
const placeholderPassword = "CHANGE_ME"

// reservedPrefixes are route prefixes the metrics path must not shadow.
var reservedPrefixes = []string{"/manage", "/healthz", "/proxy/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config            string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host              string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port              int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	MarkLogicHost     string `kong:"name='marklogic-host',help='MarkLogic host (overrides config).',env='MARKLOGIC_HOST'"`
	MarkLogicUsername string `kong:"name='marklogic-username',help='MarkLogic digest username (overrides config).',env='MARKLOGIC_USERNAME'"`
	MarkLogicPassword string `kong:"name='marklogic-password',help='MarkLogic digest password (overrides config).',env='MARKLOGIC_PASSWORD'"`
	LogLevel          string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	MarkLogic MarkLogicConfig `toml:"marklogic"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `toml:"host"`
	Port      int             `toml:"port"` // 0 means "use default" (8080)
	RateLimit RateLimitConfig `toml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// CORSConfig lists browser origins allowed to call the proxy.
// An empty list disables the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// MarkLogicConfig describes the MarkLogic cluster being proxied.
type MarkLogicConfig struct {
	Host       string `toml:"host"`
	Scheme     string `toml:"scheme"`
	Port       int    `toml:"port"`        // app server port the client authenticates against
	ManagePort int    `toml:"manage_port"` // Management API port
	Username   string `toml:"username"`
	Password   string `toml:"password"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int  `toml:"timeout_seconds"`
	IdleConnections int  `toml:"idle_connections"`
	TLSSkipVerify   bool `toml:"tls_skip_verify"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/marklogic-admin-proxy/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.MarkLogicHost != "" {
		c.MarkLogic.Host = cli.MarkLogicHost
	}
	if cli.MarkLogicUsername != "" {
		c.MarkLogic.Username = cli.MarkLogicUsername
	}
	if cli.MarkLogicPassword != "" {
		c.MarkLogic.Password = cli.MarkLogicPassword
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// MarkLogic connection.
	if strings.TrimSpace(c.MarkLogic.Host) == "" {
		return fmt.Errorf("marklogic.host is required")
	}
	if strings.ContainsAny(c.MarkLogic.Host, "/?#@ ") {
		return fmt.Errorf("marklogic.host must be a bare host name or address; got %q", c.MarkLogic.Host)
	}
	switch strings.ToLower(c.MarkLogic.Scheme) {
	case "http", "https", "":
		// valid
	default:
		return fmt.Errorf("marklogic.scheme must be one of: http, https; got %q", c.MarkLogic.Scheme)
	}
	if c.MarkLogic.Username == "" {
		return fmt.Errorf("marklogic.username is required")
	}
	if c.MarkLogic.Password == "" {
		return fmt.Errorf("marklogic.password is required")
	}
	if c.MarkLogic.Password == placeholderPassword {
		return fmt.Errorf("marklogic.password contains placeholder value; set the real digest password")
	}

	// Numeric bounds.
	for name, port := range map[string]int{
		"server.port":           c.Server.Port,
		"marklogic.port":        c.MarkLogic.Port,
		"marklogic.manage_port": c.MarkLogic.ManagePort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s must be 0–65535; got %d", name, port)
		}
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	for _, origin := range c.Server.CORS.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("server.cors.allowed_origins must not contain empty entries")
		}
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedPrefixes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	c.MarkLogic.Scheme = strings.ToLower(c.MarkLogic.Scheme)
	if c.MarkLogic.Scheme == "" {
		c.MarkLogic.Scheme = "http"
	}
	if c.MarkLogic.Port == 0 {
		c.MarkLogic.Port = 8000
	}
	if c.MarkLogic.ManagePort == 0 {
		c.MarkLogic.ManagePort = 8002
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 60
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ManageBaseURL returns the Management API root, e.g. http://ml:8002.
func (c *MarkLogicConfig) ManageBaseURL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.ManagePort))
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file holds the MarkLogic password and is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
