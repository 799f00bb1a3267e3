package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for both the notification server and the CLI client.
type Config struct {
	Port   string
	AppURL string

	EmailUser     string
	EmailPassword string
	EmailFrom     string
	SMTPHost      string
	SMTPPort      int

	LineChannelToken  string
	LineChannelSecret string

	Store StoreConfig

	NotifyURL    string
	ReminderLead time.Duration
	Location     *time.Location
	BcryptCost   int

	LogLevel string
	LogJSON  bool
}

// StoreConfig selects and parameterises the key-value backend.
type StoreConfig struct {
	Backend       string
	Path          string
	ProjectID     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	emailUser := os.Getenv("EMAIL_USER")
	emailFrom := getenv("EMAIL_FROM", emailUser)

	port := getenv("PORT", "3000")

	loc := time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	return &Config{
		Port:              port,
		AppURL:            getenv("APP_URL", "http://localhost:3000"),
		EmailUser:         emailUser,
		EmailPassword:     os.Getenv("EMAIL_PASSWORD"),
		EmailFrom:         emailFrom,
		SMTPHost:          getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          getint("SMTP_PORT", 587),
		LineChannelToken:  os.Getenv("LINE_CHANNEL_TOKEN"),
		LineChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		Store: StoreConfig{
			Backend:       getenv("STORE_BACKEND", "sqlite"),
			Path:          getenv("STORE_PATH", defaultStorePath()),
			ProjectID:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getint("REDIS_DB", 0),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
		},
		NotifyURL:    getenv("NOTIFY_URL", "http://localhost:3000"),
		ReminderLead: getduration("REMINDER_LEAD", 15*time.Minute),
		Location:     loc,
		BcryptCost:   getint("BCRYPT_COST", 12),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogJSON:      os.Getenv("LOG_JSON") == "true",
	}
}

// MailEnabled reports whether SMTP credentials were provided.
func (c *Config) MailEnabled() bool {
	return c.EmailUser != ""
}

// LineEnabled reports whether the LINE channel is configured.
func (c *Config) LineEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

// defaultStorePath uses the XDG data directory or falls back to ~/.local/share
func defaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "taskflow.db"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "taskflow", "taskflow.db")
}
