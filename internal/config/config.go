package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvPaths are tried in order; the first .env found wins
var DefaultEnvPaths = []string{".env", "../.env", "../../.env"}

// Config is everything the binaries need, passed explicitly into each component
type Config struct {
	UsernamesFile string // one username per line
	DataFile      string // JSON collection
	BackupDir     string // optional gzip backups of DataFile

	SQLitePath     string
	TursoURL       string
	TursoAuthToken string
	PostgresURL    string

	Country string // players followed by the forfeit and win-rate stats

	APIBaseURL     string
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestsPerSec float64 // 0 disables pacing

	DiscordWebhookURL string
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		UsernamesFile: "usernames.txt",
		DataFile:      "all_user_matches.json",
		SQLitePath:    "matches.db",
		Country:       "br",
		APIBaseURL:    "https://mcsrranked.com/api",
		MaxAttempts:   5,
		RetryDelay:    5 * time.Second,
	}
}

// LoadDotEnv loads the first .env file found in paths (DefaultEnvPaths when empty).
// Returns the path that was loaded, or "" when none exists.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = DefaultEnvPaths
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads the configuration from environment variables on top of Default()
func Load() (Config, error) {
	cfg := Default()

	setString(&cfg.UsernamesFile, "USERNAMES_FILE")
	setString(&cfg.DataFile, "MATCHES_FILE")
	setString(&cfg.BackupDir, "BACKUP_DIR")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.TursoURL, "TURSO_DATABASE_URL")
	setString(&cfg.TursoAuthToken, "TURSO_AUTH_TOKEN")
	setString(&cfg.PostgresURL, "DATABASE_URL")
	setString(&cfg.Country, "TARGET_COUNTRY")
	setString(&cfg.APIBaseURL, "MCSR_API_URL")
	setString(&cfg.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	cfg.Country = strings.ToLower(cfg.Country)

	if v := env("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid MAX_ATTEMPTS %q", v)
		}
		cfg.MaxAttempts = n
	}
	if v := env("RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid RETRY_DELAY %q", v)
		}
		cfg.RetryDelay = d
	}
	if v := env("REQUESTS_PER_SECOND"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return cfg, fmt.Errorf("invalid REQUESTS_PER_SECOND %q", v)
		}
		cfg.RequestsPerSec = r
	}

	return cfg, nil
}

// env returns a variable with surrounding quotes removed (from .env parsing)
func env(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"")
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

// LoadUsernames reads one username per line, skipping blank lines
func LoadUsernames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usernames file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usernames file: %w", err)
	}

	if len(names) == 0 {
		log.Printf("[Config] %s contains no usernames", path)
	}
	return names, nil
}
