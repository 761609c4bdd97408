package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int

	// Remote console of the game server
	RconHost     string
	RconPort     int
	RconPassword string
	RconTimeout  time.Duration

	DataRoot   string // Directory holding server.properties and the worlds
	BackupPath string // Directory archives are written to

	SaveSettleDelay  time.Duration // Pause between save-all and save-off
	BackupTimeout    time.Duration // Budget for producing one archive
	BackupSchedule   string        // Cron spec, empty disables scheduled backups
	BackupRetention  int           // Archives kept per world by the scheduler, 0 keeps all
	BackupAutoUpload bool

	// Remote storage
	SyncBackend      string // "rclone" or "s3"
	RcloneBinary     string
	RcloneConfigPath string
	RcloneRemote     string
	RcloneRemoteDir  string
	SyncTimeout      time.Duration
	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	GameContainer      string // Optional container restarted when RCON is unreachable
	StatusPollInterval time.Duration
	CORSOrigins        []string

	LogLevel string
	LogJSON  bool
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	s3Endpoint := getEnv("S3_ENDPOINT", "")
	cfg := &Config{
		ServerPort:         intVar("PORT", 8080),
		RconHost:           getEnv("RCON_HOST", "localhost"),
		RconPort:           intVar("RCON_PORT", 25575),
		RconPassword:       getEnv("RCON_PASSWORD", ""),
		RconTimeout:        durVar("RCON_TIMEOUT", 5*time.Second),
		DataRoot:           getEnv("MC_DATA_DIR", "./data"),
		BackupPath:         getEnv("BACKUP_DIR", "./backups"),
		SaveSettleDelay:    durVar("BACKUP_SETTLE_DELAY", 2*time.Second),
		BackupTimeout:      durVar("BACKUP_TIMEOUT", 10*time.Minute),
		BackupSchedule:     getEnv("BACKUP_SCHEDULE", ""),
		BackupRetention:    intVar("BACKUP_RETENTION", 0),
		BackupAutoUpload:   getEnvBool("BACKUP_AUTO_UPLOAD", false),
		SyncBackend:        strings.ToLower(getEnv("SYNC_BACKEND", "rclone")),
		RcloneBinary:       getEnv("RCLONE_BINARY", "rclone"),
		RcloneConfigPath:   getEnv("RCLONE_CONFIG", "./rclone.conf"),
		RcloneRemote:       getEnv("RCLONE_REMOTE", "gdrive"),
		RcloneRemoteDir:    getEnv("RCLONE_REMOTE_DIR", "minecraft-backups"),
		SyncTimeout:        durVar("SYNC_TIMEOUT", 10*time.Minute),
		S3Endpoint:         strings.TrimPrefix(strings.TrimPrefix(s3Endpoint, "https://"), "http://"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3Bucket:           getEnv("S3_BUCKET", "world-backups"),
		S3UseSSL:           getEnvBool("S3_SSL", strings.HasPrefix(s3Endpoint, "https://")),
		GameContainer:      getEnv("GAME_CONTAINER", ""),
		StatusPollInterval: durVar("STATUS_POLL_INTERVAL", 30*time.Second),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogJSON:            getEnvBool("LOG_JSON", false),
	}

	if cfg.SyncBackend != "rclone" && cfg.SyncBackend != "s3" {
		errs = append(errs, fmt.Sprintf("SYNC_BACKEND: unsupported backend %q", cfg.SyncBackend))
	}
	if cfg.StatusPollInterval <= 0 {
		errs = append(errs, "STATUS_POLL_INTERVAL: must be positive")
	}
	if cfg.BackupRetention < 0 {
		errs = append(errs, "BACKUP_RETENTION: must not be negative")
	}
	if cfg.BackupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.BackupSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("BACKUP_SCHEDULE: %v", err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// RconAddr returns host:port of the remote console.
func (c *Config) RconAddr() string {
	return fmt.Sprintf("%s:%d", c.RconHost, c.RconPort)
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
