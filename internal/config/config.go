package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	PreviewDir string

	LogLevel  string
	LogFormat string

	OrdersBackend string
	Extractor     string
	Matcher       string

	OrdersAPIBaseURL  string
	ExtractionAPIURL  string
	MatchingAPIURL    string
	RemoteTimeoutMs   int
	RemoteRateLimit   int
	RemoteMaxAttempts int

	MatchTopN               int
	MatchMinScore           float64
	MatchAutoSelect         bool
	MatchAutoSelectMinScore float64

	ArchiveBackend string
	ArchiveDir     string
	S3Region       string
	S3Bucket       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "poflow.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		PreviewDir: getEnv("PREVIEW_DIR", filepath.Join(os.TempDir(), "poflow-preview")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		OrdersBackend: getEnv("ORDERS_BACKEND", "local"),
		Extractor:     getEnv("EXTRACTOR", "local"),
		Matcher:       getEnv("MATCHER", "local"),

		OrdersAPIBaseURL:  getEnv("ORDERS_API_BASE_URL", "http://localhost:8000/api"),
		ExtractionAPIURL:  getEnv("EXTRACTION_API_URL", "http://localhost:8001/extraction_api"),
		MatchingAPIURL:    getEnv("MATCHING_API_URL", "http://localhost:8002/match/batch"),
		RemoteTimeoutMs:   getEnvInt("REMOTE_TIMEOUT_MS", 120000),
		RemoteRateLimit:   getEnvInt("REMOTE_RATE_LIMIT_RPS", 5),
		RemoteMaxAttempts: getEnvInt("REMOTE_MAX_ATTEMPTS", 3),

		MatchTopN:               getEnvInt("MATCH_TOP_N", 5),
		MatchMinScore:           getEnvFloat("MATCH_MIN_SCORE", 40),
		MatchAutoSelect:         getEnvBool("MATCH_AUTOSELECT", false),
		MatchAutoSelectMinScore: getEnvFloat("MATCH_AUTOSELECT_MIN_SCORE", 85),

		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "dir"),
		ArchiveDir:     getEnv("ARCHIVE_DIR", filepath.Join(cwd, "out", "archive")),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Prefix:       getEnv("S3_PREFIX", "orders"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 10),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
