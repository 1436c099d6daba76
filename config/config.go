package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally via a .env file) with simple defaults.
type Config struct {
	TelegramToken string

	YtdlpPath    string // path to the yt-dlp binary, empty means $PATH lookup
	AudioBitrate string // e.g., "192k"
	SearchLimit  int    // max results returned by /search

	DownloadDir string // base directory for per-user audio downloads
	DataDir     string // directory for history.json / playlists.json

	// PlayPolicy decides what /play <url> does with a single track when a
	// queue already exists: "append" adds it to the end, "replace" swaps
	// the whole queue out.
	PlayPolicy string

	TrackGapSeconds int // fixed delay between auto-continued tracks

	LogPath  string
	LogLevel string

	// StatusAddr enables the read-only status HTTP server when non-empty,
	// e.g. "127.0.0.1:8080".
	StatusAddr string

	// Redis metadata cache (optional)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	playPolicy := strings.ToLower(getEnv("PLAY_POLICY", "append"))
	if playPolicy != "append" && playPolicy != "replace" {
		log.Printf("Unknown PLAY_POLICY %q, falling back to append", playPolicy)
		playPolicy = "append"
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"), // required, checked at startup

		YtdlpPath:    getEnv("YTDLP_PATH", ""),
		AudioBitrate: getEnv("AUDIO_BITRATE", "192k"),
		SearchLimit:  getEnvInt("SEARCH_LIMIT", 5),

		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),
		DataDir:     dataDir,

		PlayPolicy:      playPolicy,
		TrackGapSeconds: getEnvInt("TRACK_GAP_SECONDS", 2),

		LogPath:  getEnv("LOG_PATH", filepath.Join("logs", "tgfm.log")),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StatusAddr: getEnv("STATUS_ADDR", ""),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}
