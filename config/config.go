package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string   `env:"APP_PORT"`
	JWTSecret          string   `env:"JWT_SECRET"`
	TokenTTLHours      int      `env:"TOKEN_TTL_HOURS"`
	BcryptCost         int      `env:"BCRYPT_COST"`
	UploadDir          string   `env:"UPLOAD_DIR"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE"`
	// Redis backs the token blacklist; empty host keeps it in memory
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
}

// DefaultPath is where Load looks for the JSON config file.
var DefaultPath = filepath.Join("config", "config.json")

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// Load loads the application configuration. It should be called once during boot
// and exits the process when the configuration is unusable.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// .env is optional; existing environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	c, err := LoadFrom(DefaultPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.Lock()
	ok := loaded
	mu.Unlock()
	if !ok {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration with precedence: JSON file -> defaults -> environment.
// A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := env.Parse(&c); err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	if c.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET must be set in config or environment")
	}
	return c, nil
}

// fileConfig mirrors the grouped layout of config.json.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		JWTSecret          string   `json:"JWTSecret"`
		TokenTTLHours      int      `json:"TokenTTLHours"`
		BcryptCost         int      `json:"BcryptCost"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
		GinMode            string   `json:"GinMode"`
	} `json:"app"`
	Upload struct {
		Dir string `json:"Dir"`
	} `json:"upload"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
}

// loadJSONConfig reads the JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var fc fileConfig
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return err
	}

	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.TokenTTLHours = fc.App.TokenTTLHours
	out.BcryptCost = fc.App.BcryptCost
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.GinMode = fc.App.GinMode
	out.UploadDir = fc.Upload.Dir
	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword
	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(".", "static", "uploads")
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
