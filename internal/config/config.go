// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/trackerwl/internal/domain"
	"github.com/autobrr/trackerwl/pkg/debounce"
)

var envPrefix = "TRACKERWL__"

const reloadDebounce = 250 * time.Millisecond

const databaseFileName = "trackerwl.db"

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	dataDir string
	version string

	mu          sync.RWMutex
	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	if err := c.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c.resolveDataDir()

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "") // Empty means next to the config file
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9075)
	c.viper.SetDefault("metricsBasicAuthUsers", "")
	c.viper.SetDefault("historyEnabled", true)
	c.viper.SetDefault("historyRetention", "720h")
	c.viper.SetDefault("whitelistRoots", []string{})
	c.viper.SetDefault("rescanInterval", "60s")
	c.viper.SetDefault("maxScanDepth", 64)
	c.viper.SetDefault("maxScanInodes", 100000)
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	c.viper.SetConfigName("config")
	c.viper.AddConfigPath(".")
	c.viper.AddConfigPath(GetDefaultConfigDir())

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}

		defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
		if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
			return err
		}
		c.viper.SetConfigFile(defaultConfigPath)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read newly created config: %w", err)
		}
	}

	return nil
}

func (c *AppConfig) loadFromEnv() error {
	// Bind explicitly instead of AutomaticEnv so unrelated variables never leak in.
	binds := map[string]string{
		"logLevel":         "LOG_LEVEL",
		"logPath":          "LOG_PATH",
		"logMaxSize":       "LOG_MAX_SIZE",
		"logMaxBackups":    "LOG_MAX_BACKUPS",
		"dataDir":          "DATA_DIR",
		"metricsEnabled":   "METRICS_ENABLED",
		"metricsHost":      "METRICS_HOST",
		"metricsPort":      "METRICS_PORT",
		"historyEnabled":   "HISTORY_ENABLED",
		"historyRetention": "HISTORY_RETENTION",
		"whitelistRoots":   "WHITELIST_ROOTS",
		"rescanInterval":   "RESCAN_INTERVAL",
		"maxScanDepth":     "MAX_SCAN_DEPTH",
		"maxScanInodes":    "MAX_SCAN_INODES",
	}
	for key, env := range binds {
		if err := c.viper.BindEnv(key, envPrefix+env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", envPrefix+env, err)
		}
	}

	return c.bindOrReadFromFile("metricsBasicAuthUsers", envPrefix+"METRICS_BASIC_AUTH_USERS")
}

// bindOrReadFromFile reads viperVar from the file named by envVar+"_FILE" when
// that variable is set, and binds envVar otherwise.
func (c *AppConfig) bindOrReadFromFile(viperVar string, envVar string) error {
	if filePath := os.Getenv(envVar + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("could not read %s_FILE: %w", envVar, err)
		}
		c.viper.Set(viperVar, strings.TrimSpace(string(content)))
		return nil
	}
	return c.viper.BindEnv(viperVar, envVar)
}

// Watch reloads the config file on change and notifies the reload listeners.
// Editors often write a file in several steps, so events are debounced.
func (c *AppConfig) Watch() {
	reloads := debounce.New(reloadDebounce)
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Msgf("Config file changed: %s", e.Name)
		reloads.Do(c.reload)
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload() {
	next := &domain.Config{}
	if err := c.viper.Unmarshal(next); err != nil {
		log.Error().Err(err).Msg("Failed to reload configuration")
		return
	}
	next.Version = c.version

	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("Ignoring invalid configuration change")
		return
	}

	c.mu.Lock()
	*c.Config = *next
	c.mu.Unlock()

	c.ApplyLogConfig()
	log.Info().Int("whitelistRoots", len(next.CleanWhitelistRoots())).Msg("Configuration reloaded")
	c.notifyListeners()
}

// Snapshot returns a copy of the current configuration.
func (c *AppConfig) Snapshot() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := *c.Config
	copied.WhitelistRoots = append([]string(nil), c.Config.WhitelistRoots...)
	return copied
}

// RegisterReloadListener registers a callback that's invoked when the configuration file is reloaded.
func (c *AppConfig) RegisterReloadListener(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) notifyListeners() {
	c.listenersMu.RLock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	copied := c.Snapshot()
	for _, listener := range listeners {
		listener(&copied)
	}
}

const configTemplate = `# config.toml - Auto-generated on first run

# Directories whose .torrent files the tracker is allowed to serve.
# Every root runs its own scanner. Paths must be absolute.
# Example: whitelistRoots = ["/srv/torrents", "/mnt/archive/torrents"]
whitelistRoots = []

# Delay between two scans of a root. Deleted files stay registered for at
# most this long.
# Default: "{{ .rescanInterval }}"
#rescanInterval = "{{ .rescanInterval }}"

# Directory levels below a root that are scanned
# Default: {{ .maxScanDepth }}
#maxScanDepth = {{ .maxScanDepth }}

# Maximum files and directories visited per scan. A scan that hits the limit
# stops early and logs an error.
# Default: {{ .maxScanInodes }}
#maxScanInodes = {{ .maxScanInodes }}

# Log file path
# If not defined, logs to stderr
# Optional
#logPath = "log/trackerwl.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: {{ .logMaxSize }}
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
# Default: {{ .logMaxBackups }}
#logMaxBackups = {{ .logMaxBackups }}

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Data directory (default: next to config file)
# The scan history database (trackerwl.db) is created inside this directory
#dataDir = "/var/db/trackerwl"

# Scan history
# Record every scan in the history database
# Default: true
#historyEnabled = true

# How long history rows are kept
# Default: "{{ .historyRetention }}"
#historyRetention = "{{ .historyRetention }}"

# Prometheus Metrics
# Default: false
#metricsEnabled = false

# Metrics server host (bind address for metrics endpoint)
# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Metrics server port
# Default: {{ .metricsPort }}
#metricsPort = {{ .metricsPort }}

# Basic authentication for metrics endpoint (optional)
# Format: "username:password" or "user1:pass1,user2:pass2" for multiple users
# Passwords may be argon2id hashes generated with "trackerwl hash-password"
# Leave empty to disable authentication (default)
#metricsBasicAuthUsers = ""
`

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	data := map[string]any{
		"logLevel":         c.viper.GetString("logLevel"),
		"logMaxSize":       c.viper.GetInt("logMaxSize"),
		"logMaxBackups":    c.viper.GetInt("logMaxBackups"),
		"metricsPort":      c.viper.GetInt("metricsPort"),
		"historyRetention": c.viper.GetString("historyRetention"),
		"rescanInterval":   c.viper.GetString("rescanInterval"),
		"maxScanDepth":     c.viper.GetInt("maxScanDepth"),
		"maxScanInodes":    c.viper.GetInt("maxScanInodes"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// WriteDefaultConfig writes the default config file to path unless it exists.
func WriteDefaultConfig(path string) error {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	return c.writeDefaultConfig(path)
}

// GetDefaultConfigDir returns the OS-specific config directory
func GetDefaultConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		// Containers mount /config directly.
		if xdgConfig == "/config" {
			return xdgConfig
		}
		return filepath.Join(xdgConfig, "trackerwl")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "trackerwl")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "trackerwl")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "trackerwl")
	}
}

func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	cfg := c.Snapshot()
	setLogLevel(cfg.LogLevel)

	writer := c.baseLogWriter()

	if cfg.LogPath != "" {
		multiWriter, err := setupLogFile(cfg.LogPath, writer, cfg.LogMaxSize, cfg.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}

	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) || isTerminal(os.Stderr) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		writer.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		writer.FormatMessage = func(i any) string {
			if i == nil {
				return ""
			}
			return strings.TrimSpace(fmt.Sprint(i))
		}
		return writer
	}
	return os.Stderr
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (c *AppConfig) baseLogWriter() io.Writer {
	return baseLogWriter(c.version)
}

// InitDefaultLogger configures zerolog with the default writer for this version.
// This is used by CLI entry points before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// resolveConfigPath determines the actual config file path from the provided directory or file path
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}

	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}

	return filepath.Join(configDirOrPath, "config.toml")
}

func (c *AppConfig) resolveDataDir() {
	switch {
	case c.Config.DataDir != "":
		c.dataDir = c.Config.DataDir
	case c.viper.ConfigFileUsed() != "":
		c.dataDir = filepath.Dir(c.viper.ConfigFileUsed())
	default:
		c.dataDir = "."
	}
}

// GetDatabasePath returns the path to the history database file
func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.dataDir, databaseFileName)
}

// GetDataDir returns the resolved data directory path.
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// SetDataDir sets the data directory (used by CLI flags)
func (c *AppConfig) SetDataDir(dir string) {
	c.dataDir = dir
}

// ConfigFileUsed returns the path of the loaded config file.
func (c *AppConfig) ConfigFileUsed() string {
	return c.viper.ConfigFileUsed()
}
