package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobBasePath string

	AuthHMACSecret string
	TokenTTL       time.Duration
	EnableLogin    bool

	// SweepInterval is how often expired attempts are auto-completed.
	SweepInterval time.Duration

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel  string
	LogFormat string
}

// CORSOrigins returns the origins for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// keys maps each config key to the bare env var the gateway has always read.
// Every key can also be set as MINDSPRINT_<KEY> or in the config file.
var keys = map[string]string{
	"mode":                 "MODE",
	"http_addr":            "HTTP_ADDR",
	"db_driver":            "DB_DRIVER",
	"db_dsn":               "DB_DSN",
	"blob_base_path":       "BLOB_BASE_PATH",
	"auth_hmac_secret":     "AUTH_HMAC_SECRET",
	"token_ttl":            "TOKEN_TTL",
	"enable_login":         "ENABLE_LOCAL_AUTH",
	"sweep_interval":       "SWEEP_INTERVAL",
	"cors_origins_online":  "CORS_ORIGINS_ONLINE",
	"cors_origins_offline": "CORS_ORIGINS_OFFLINE",
	"log_level":            "LOG_LEVEL",
	"log_format":           "LOG_FORMAT",
}

// Load reads defaults, then the optional config file (path, or mindsprint.yaml in the
// working directory when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("blob_base_path", "./data")
	v.SetDefault("auth_hmac_secret", "supersecret-dev-key")
	v.SetDefault("token_ttl", "8h")
	v.SetDefault("enable_login", true)
	v.SetDefault("sweep_interval", "15s")
	v.SetDefault("cors_origins_online", "https://mindsprint.example.com")
	v.SetDefault("cors_origins_offline", "http://localhost:3000,http://localhost:8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	for k, bare := range keys {
		if err := v.BindEnv(k, "MINDSPRINT_"+strings.ToUpper(k), bare); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mindsprint")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := Config{
		Mode:               Mode(strings.ToLower(v.GetString("mode"))),
		HTTPAddr:           v.GetString("http_addr"),
		DBDriver:           v.GetString("db_driver"),
		DBDSN:              v.GetString("db_dsn"),
		BlobBasePath:       v.GetString("blob_base_path"),
		AuthHMACSecret:     v.GetString("auth_hmac_secret"),
		TokenTTL:           v.GetDuration("token_ttl"),
		EnableLogin:        v.GetBool("enable_login"),
		SweepInterval:      v.GetDuration("sweep_interval"),
		CORSOriginsOnline:  splitCSV(v.GetString("cors_origins_online")),
		CORSOriginsOffline: splitCSV(v.GetString("cors_origins_offline")),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Mode != ModeOffline && c.Mode != ModeOnline {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token_ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: sweep_interval must be positive")
	}
	if c.Mode == ModeOnline && c.AuthHMACSecret == "supersecret-dev-key" {
		return errors.New("config: auth_hmac_secret must be set in online mode")
	}
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
