package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Mail     MailConfig
	Drop     DropConfig
	Backup   BackupConfig
	State    StateConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// MailConfig holds the IMAP purchase-order feed configuration.
// The feed stays off unless IMAP_ADDR is set.
type MailConfig struct {
	IMAPAddr      string
	Username      string
	Password      string
	Mailbox       string
	SubjectFilter string
	SenderFilter  string
	Lookback      time.Duration
	PollSpec      string
}

// Enabled reports whether the mail feed should run.
func (m MailConfig) Enabled() bool {
	return m.IMAPAddr != ""
}

// DropConfig holds the scanner drop-folder intake configuration.
// The watcher stays off unless DROP_DIR is set.
type DropConfig struct {
	Dir      string
	Debounce time.Duration
}

// Enabled reports whether the drop-folder watcher should run.
func (d DropConfig) Enabled() bool {
	return d.Dir != ""
}

// BackupConfig holds the artifact backup sink configuration.
type BackupConfig struct {
	LocalDir string
	S3Bucket string
	S3Prefix string
}

// StateConfig locates the operator-maintained initial state file
// (numbering seeds, company profiles, billing terms).
type StateConfig struct {
	Path string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Mail: MailConfig{
			IMAPAddr:      getEnv("IMAP_ADDR", ""),
			Username:      getEnv("IMAP_USERNAME", ""),
			Password:      getEnv("IMAP_PASSWORD", ""),
			Mailbox:       getEnv("IMAP_MAILBOX", "INBOX"),
			SubjectFilter: getEnv("MAIL_SUBJECT_FILTER", "PO"),
			SenderFilter:  getEnv("MAIL_SENDER_FILTER", ""),
			Lookback:      getEnvAsDuration("MAIL_LOOKBACK", 72*time.Hour),
			PollSpec:      getEnv("MAIL_POLL_SPEC", "@every 5m"),
		},
		Drop: DropConfig{
			Dir:      getEnv("DROP_DIR", ""),
			Debounce: getEnvAsDuration("DROP_DEBOUNCE", 2*time.Second),
		},
		Backup: BackupConfig{
			LocalDir: getEnv("BACKUP_LOCAL_DIR", ""),
			S3Bucket: getEnv("BACKUP_S3_BUCKET", ""),
			S3Prefix: getEnv("BACKUP_S3_PREFIX", "hertz-invoicer"),
		},
		State: StateConfig{
			Path: getEnv("STATE_PATH", "./state.json"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.State.Path == "" {
		return NewAppError("CONFIG_ERROR", "STATE_PATH is required", ErrInvalidInput)
	}
	if c.Mail.Enabled() {
		if c.Mail.Username == "" || c.Mail.Password == "" {
			return NewAppError("CONFIG_ERROR", "IMAP_USERNAME and IMAP_PASSWORD are required when IMAP_ADDR is set", ErrInvalidInput)
		}
	}
	return nil
}
