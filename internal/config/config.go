// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Cache backends.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Server  ServerConfig
	Cache   CacheConfig
	Library LibraryConfig
	Batch   BatchConfig
	Sources SourcesConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataPath is the directory database files default into.
	DataPath string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s); streams extend it per event
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	// TriggerRate and TriggerBurst limit how often one user may start
	// batches (default: 0.2/s, burst 3).
	TriggerRate  float64
	TriggerBurst int
}

// CacheConfig holds shared cache configuration.
type CacheConfig struct {
	Backend string // sqlite or badger (default: sqlite)
	// Path is the sqlite file or badger directory (default: {data}/cache.db or {data}/cache)
	Path          string
	PruneInterval time.Duration // 0 disables the background prune (default: 24h)
	PruneDays     int           // default: 90
}

// LibraryConfig holds the record store configuration.
type LibraryConfig struct {
	DBPath string // default: {data}/library.db
}

// BatchConfig holds batch orchestration defaults.
type BatchConfig struct {
	Concurrency   int           // default: 5, max 20
	SourceTimeout time.Duration // per source call (default: 15s)
}

// MusicBrainzConfig identifies the application to MusicBrainz.
type MusicBrainzConfig struct {
	AppName    string
	AppVersion string
	Contact    string
}

// SpotifyConfig holds Spotify client credentials. Spotify sources are
// disabled when either is empty.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

// SourcesConfig holds external catalog configuration.
type SourcesConfig struct {
	MusicBrainz     MusicBrainzConfig
	Spotify         SpotifyConfig
	ImageOrder      []string
	GenreOrder      []string
	DefaultInterval time.Duration // spacing for sources without their own (default: 200ms)
}

// LoadConfig loads configuration from the process arguments, see Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags in args (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("enrichd", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for database files (default: ~/.enrichd)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Cache flags
	cacheBackend := fs.String("cache-backend", "", "Cache backend: sqlite or badger (default: sqlite)")
	cachePath := fs.String("cache-path", "", "Cache database path")
	pruneInterval := fs.String("cache-prune-interval", "", "Background cache prune interval, 0 disables (default: 24h)")
	pruneDays := fs.String("cache-prune-days", "", "Prune records not hit for this many days (default: 90)")

	libraryPath := fs.String("library-db-path", "", "Record store database path")

	// Batch flags
	concurrency := fs.String("batch-concurrency", "", "Default batch window size (default: 5)")
	sourceTimeout := fs.String("source-timeout", "", "Timeout for one source call (default: 15s)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:         getConfigValue(*serverPort, "PORT", "8080"),
			TriggerRate:  getFloatConfigValue("", "TRIGGER_RATE", 0.2),
			TriggerBurst: getIntConfigValue("", "TRIGGER_BURST", 3),
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(getConfigValue(*cacheBackend, "CACHE_BACKEND", CacheBackendSQLite)),
			Path:      getConfigValue(*cachePath, "CACHE_PATH", ""),
			PruneDays: getIntConfigValue(*pruneDays, "CACHE_PRUNE_DAYS", 90),
		},
		Library: LibraryConfig{
			DBPath: getConfigValue(*libraryPath, "LIBRARY_DB_PATH", ""),
		},
		Batch: BatchConfig{
			Concurrency: getIntConfigValue(*concurrency, "BATCH_CONCURRENCY", 5),
		},
		Sources: SourcesConfig{
			MusicBrainz: MusicBrainzConfig{
				AppName:    getConfigValue("", "MUSICBRAINZ_APP_NAME", "enrichd"),
				AppVersion: getConfigValue("", "MUSICBRAINZ_APP_VERSION", "1.0"),
				Contact:    getConfigValue("", "MUSICBRAINZ_CONTACT", ""),
			},
			Spotify: SpotifyConfig{
				ClientID:     getConfigValue("", "SPOTIFY_CLIENT_ID", ""),
				ClientSecret: getConfigValue("", "SPOTIFY_CLIENT_SECRET", ""),
			},
			ImageOrder: getListConfigValue("", "IMAGE_SOURCES", []string{"spotify", "itunes", "musicbrainz"}),
			GenreOrder: getListConfigValue("", "GENRE_SOURCES", []string{"musicbrainz", "spotify", "itunes"}),
		},
	}

	durations := []struct {
		dst          *time.Duration
		flag, envKey string
		def          string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Cache.PruneInterval, *pruneInterval, "CACHE_PRUNE_INTERVAL", "24h"},
		{&cfg.Batch.SourceTimeout, *sourceTimeout, "SOURCE_TIMEOUT", "15s"},
		{&cfg.Sources.DefaultInterval, "", "DEFAULT_SOURCE_INTERVAL", "200ms"},
	}
	for _, d := range durations {
		s := getConfigValue(d.flag, d.envKey, d.def)
		v, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, s, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Cache.Backend != CacheBackendSQLite && c.Cache.Backend != CacheBackendBadger {
		return fmt.Errorf("invalid cache backend: %s (must be sqlite or badger)", c.Cache.Backend)
	}
	if c.Cache.Path == "" {
		return errors.New("cache path cannot be empty after expansion")
	}
	if c.Cache.PruneDays <= 0 {
		return fmt.Errorf("cache prune days must be positive, got %d", c.Cache.PruneDays)
	}
	if c.Cache.PruneInterval < 0 {
		return fmt.Errorf("cache prune interval cannot be negative, got %s", c.Cache.PruneInterval)
	}

	if c.Library.DBPath == "" {
		return errors.New("library database path cannot be empty after expansion")
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 20 {
		return fmt.Errorf("batch concurrency must be between 1 and 20, got %d", c.Batch.Concurrency)
	}
	if c.Batch.SourceTimeout <= 0 {
		return errors.New("source timeout must be positive")
	}

	if len(c.Sources.ImageOrder) == 0 || len(c.Sources.GenreOrder) == 0 {
		return errors.New("IMAGE_SOURCES and GENRE_SOURCES cannot be empty")
	}

	return nil
}

// expandPaths resolves the data directory and the database paths that
// default into it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.App.DataPath, err = expandPath(c.App.DataPath, filepath.Join(homeDir, ".enrichd")); err != nil {
		return err
	}

	cacheDefault := filepath.Join(c.App.DataPath, "cache.db")
	if c.Cache.Backend == CacheBackendBadger {
		cacheDefault = filepath.Join(c.App.DataPath, "cache")
	}
	if c.Cache.Path, err = expandPath(c.Cache.Path, cacheDefault); err != nil {
		return err
	}

	if c.Library.DBPath, err = expandPath(c.Library.DBPath, filepath.Join(c.App.DataPath, "library.db")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(strValue), 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue returns a comma separated list, lowercased, with empty
// entries dropped.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for part := range strings.SplitSeq(strValue, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
