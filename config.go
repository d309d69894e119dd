package main

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/coreybb/rhymera/generation"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

const (
	defaultPort        = "8000"
	defaultDatabaseURL = "user=postgres password=password dbname=rhymera host=localhost port=5432 sslmode=disable"
	defaultSQLitePath  = "rhymera.db"
	defaultMongoURL    = "mongodb://localhost:27017"
)

type config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string
	DatabaseName   string

	BlobBackend  string
	BlobDir      string
	BlobCacheTTL time.Duration

	GeminiAPIKey string
	TextModel    string
	ImageModel   string

	PageStyle          string
	CoverStyle         string
	MaxPages           int
	ImageRatePerMinute int

	SecretKey          string
	TokenTTL           time.Duration
	LoginRatePerMinute int

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.name", "children_books")

	v.SetDefault("blob.backend", "database")
	v.SetDefault("blob.dir", "_output")
	v.SetDefault("blob.cache_ttl", "10m")

	v.SetDefault("gemini.text_model", generation.DefaultTextModel)
	v.SetDefault("gemini.image_model", generation.DefaultImageModel)

	v.SetDefault("generation.page_style", generation.DefaultPageStyle)
	v.SetDefault("generation.cover_style", generation.DefaultCoverStyle)
	v.SetDefault("generation.max_pages", 24)
	v.SetDefault("generation.image_rate_per_minute", 10)

	v.SetDefault("auth.token_ttl", "30m")
	v.SetDefault("auth.login_rate_per_minute", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// envBindings keeps the environment names existing deployments already use.
var envBindings = map[string][]string{
	"port":            {"PORT"},
	"database.url":    {"DB_CONNECTION_STRING", "MONGODB_URL"},
	"database.name":   {"DB_NAME"},
	"gemini.api_key":  {"GOOGLE_API_TOKEN", "GEMINI_API_KEY"},
	"auth.secret_key": {"SECRET_KEY"},
}

// newViper reads defaults, an optional rhymera.yaml and the environment, in increasing priority.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RHYMERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("rhymera")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		Port:               v.GetString("port"),
		DatabaseDriver:     strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:        v.GetString("database.url"),
		DatabaseName:       v.GetString("database.name"),
		BlobBackend:        strings.ToLower(v.GetString("blob.backend")),
		BlobDir:            v.GetString("blob.dir"),
		BlobCacheTTL:       v.GetDuration("blob.cache_ttl"),
		GeminiAPIKey:       v.GetString("gemini.api_key"),
		TextModel:          v.GetString("gemini.text_model"),
		ImageModel:         v.GetString("gemini.image_model"),
		PageStyle:          v.GetString("generation.page_style"),
		CoverStyle:         v.GetString("generation.cover_style"),
		MaxPages:           v.GetInt("generation.max_pages"),
		ImageRatePerMinute: v.GetInt("generation.image_rate_per_minute"),
		SecretKey:          v.GetString("auth.secret_key"),
		TokenTTL:           v.GetDuration("auth.token_ttl"),
		LoginRatePerMinute: v.GetInt("auth.login_rate_per_minute"),
		LogLevel:           v.GetString("log.level"),
		LogFormat:          strings.ToLower(v.GetString("log.format")),
	}

	// The default location depends on the driver.
	switch cfg.DatabaseDriver {
	case "postgres":
		cfg.DatabaseURL = cmp.Or(cfg.DatabaseURL, defaultDatabaseURL)
	case "sqlite":
		cfg.DatabaseURL = cmp.Or(cfg.DatabaseURL, defaultSQLitePath)
	case "mongo":
		cfg.DatabaseURL = cmp.Or(cfg.DatabaseURL, defaultMongoURL)
	default:
		return cfg, fmt.Errorf("unsupported database.driver %q", cfg.DatabaseDriver)
	}
	switch cfg.BlobBackend {
	case "database", "filesystem":
	default:
		return cfg, fmt.Errorf("unsupported blob.backend %q", cfg.BlobBackend)
	}
	if cfg.MaxPages <= 0 {
		return cfg, fmt.Errorf("generation.max_pages must be positive")
	}
	return cfg, nil
}

func setupLogging(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = humanlog.NewHandler(os.Stdout, &humanlog.Options{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
