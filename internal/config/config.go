package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings for the daemon.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Config holds all runtime settings shared by the CLI and the daemon.
type Config struct {
	Server ServerConfig
	Log    LogConfig

	// Mode selects the daemon surface: http, mcp or both.
	Mode string
	// PowerShell overrides the scheduler control binary.
	PowerShell string
	// StateDir holds the operation-history database.
	StateDir string
	// HistoryKeep is the number of operation records retained.
	HistoryKeep int
	// SnapshotCron, when set, is a 5-field cron expression on which the
	// daemon records listing snapshots.
	SnapshotCron  string
	ShutdownGrace time.Duration
}

const (
	defaultAddr        = "127.0.0.1:7180"
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultMode        = "http"
	defaultHistoryKeep = 500

	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// FromEnv builds a Config from environment variables, loading an optional
// .env file first. Priority: environment > .env file > defaults.
func FromEnv() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "taskscheduler", ".env"))
	}
	for _, f := range envFiles {
		// The .env file is optional at every location.
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("TASKSCHED_ADDR", defaultAddr),
			AuthToken: getEnvString("TASKSCHED_AUTH_TOKEN", ""),
		},
		Log: LogConfig{
			Level:  getEnvString("TASKSCHED_LOG_LEVEL", defaultLogLevel),
			Format: getEnvString("TASKSCHED_LOG_FORMAT", defaultLogFormat),
		},
		Mode:          getEnvString("TASKSCHED_MODE", defaultMode),
		PowerShell:    getEnvString("TASKSCHED_POWERSHELL", ""),
		StateDir:      getEnvString("TASKSCHED_STATE_DIR", ""),
		HistoryKeep:   getEnvInt("TASKSCHED_HISTORY_KEEP", defaultHistoryKeep),
		SnapshotCron:  getEnvString("TASKSCHED_SNAPSHOT_CRON", ""),
		ShutdownGrace: getEnvDuration("TASKSCHED_SHUTDOWN_GRACE", defaultShutdownGrace),
	}
	if err := cfg.resolveStateDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseDaemon parses the daemon's command line on top of the environment.
// Priority: CLI flags > environment > .env file > defaults.
func ParseDaemon(args []string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("taskschedd", flag.ContinueOnError)
	addr := fs.String("addr", "", "HTTP listen address (overrides env)")
	mode := fs.String("mode", "", "Daemon mode: http, mcp or both")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (text, json)")
	stateDir := fs.String("state-dir", "", "Directory for the operation-history database")
	powershell := fs.String("powershell", "", "Path to the PowerShell binary")
	historyKeep := fs.Int("history-keep", 0, "Number of operation records to retain")
	snapshotCron := fs.String("snapshot-cron", "", "5-field cron expression for listing snapshots")
	shutdownGrace := fs.Duration("shutdown-grace", 0, "Grace period when shutting down")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *powershell != "" {
		cfg.PowerShell = *powershell
	}
	if *historyKeep > 0 {
		cfg.HistoryKeep = *historyKeep
	}
	if *snapshotCron != "" {
		cfg.SnapshotCron = *snapshotCron
	}
	if *shutdownGrace > 0 {
		cfg.ShutdownGrace = *shutdownGrace
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
		if err := cfg.resolveStateDir(); err != nil {
			return nil, err
		}
	}

	switch cfg.Mode {
	case "http", "mcp", "both":
	default:
		return nil, fmt.Errorf("invalid mode %q: must be http, mcp or both", cfg.Mode)
	}
	if cfg.HistoryKeep < 1 {
		cfg.HistoryKeep = defaultHistoryKeep
	}
	return cfg, nil
}

func (c *Config) resolveStateDir() error {
	if c.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return fmt.Errorf("resolve default state dir: %w", err)
		}
		c.StateDir = dir
	}
	return nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "taskscheduler")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
