package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds shared runtime configuration for the API and auditor services.
type Config struct {
	Env      string
	HTTPPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuditLogPath  string
	AuditS3Bucket string
	AuditS3Prefix string

	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
	AlertTimeout      time.Duration

	CheckInterval time.Duration
	BufferPercent int
	HistoryDays   int

	// KnownProjects, in order. The first project resolves its connection
	// string from DSNBaseVar; project N resolves from DSNBaseVar_N.
	KnownProjects []string
	DSNBaseVar    string

	RateLimitCapacity int
	RateLimitRefill   float64
}

// Load reads configuration from environment variables with sane defaults for local development.
func Load() Config {
	return Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		AuditLogPath:      getEnv("AUDIT_LOG_PATH", "audit/ddl_audit.log"),
		AuditS3Bucket:     getEnv("AUDIT_S3_BUCKET", ""),
		AuditS3Prefix:     getEnv("AUDIT_S3_PREFIX", "ddl-audit"),
		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		AlertTimeout:      getEnvDuration("ALERT_TIMEOUT", 10*time.Second),
		CheckInterval:     getEnvDuration("CHECK_INTERVAL", 15*time.Minute),
		BufferPercent:     getEnvInt("MISSED_BUFFER_PERCENT", 50),
		HistoryDays:       getEnvInt("HISTORY_DAYS", 7),
		KnownProjects:     getEnvList("KNOWN_PROJECTS", []string{"primary", "analytics", "ops"}),
		DSNBaseVar:        getEnv("DSN_BASE_VAR", "DATABASE_URL"),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 10),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.5),
	}
}

// DSNEnvVar maps a project alias to the environment variable holding its
// connection string. The first known project uses the base variable name,
// later ones take a numeric suffix (DATABASE_URL, DATABASE_URL_2, ...).
func (c Config) DSNEnvVar(project string) (string, bool) {
	for i, p := range c.KnownProjects {
		if p == project {
			if i == 0 {
				return c.DSNBaseVar, true
			}
			return fmt.Sprintf("%s_%d", c.DSNBaseVar, i+1), true
		}
	}
	return "", false
}

// ResolveDSN returns the connection string for a project alias, or an error
// naming the missing variable so misconfiguration surfaces eagerly.
func (c Config) ResolveDSN(project string) (string, error) {
	envVar, ok := c.DSNEnvVar(project)
	if !ok {
		return "", fmt.Errorf("unknown project %q (known: %s)", project, strings.Join(c.KnownProjects, ", "))
	}
	dsn := os.Getenv(envVar)
	if dsn == "" {
		return "", fmt.Errorf("project %q: environment variable %s is not set", project, envVar)
	}
	return dsn, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
