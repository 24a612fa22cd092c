package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server   Server
	Backend  Backend
	Analyzer string
	Gemini   Gemini
	LocalLLM LocalLLM
	Auth     Auth
	Database Database
	Images   Images
	S3       S3
	Log      Log
	Timeouts Timeouts
}

type Server struct {
	Port           int
	AllowedOrigins []string
}

type Backend struct {
	URL string
}

type Gemini struct {
	APIKey string
	Model  string
}

type LocalLLM struct {
	URL   string
	Model string
}

// Auth points at the auth provider. Without a JWTSecret every bearer token is
// checked with the provider instead of locally.
type Auth struct {
	URL       string
	AnonKey   string
	JWTSecret string
}

type Database struct {
	URL string
}

type Images struct {
	Store string
	Dir   string
}

type S3 struct {
	Bucket string
	Region string
}

type Log struct {
	Level  string
	Format string
}

type Timeouts struct {
	Scan    time.Duration
	Request time.Duration
}

// Load reads config.yml from dir when it exists and falls back to
// environment variables (server.port -> SERVER_PORT). A .env file in the
// working directory is loaded into the environment first.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", "http://localhost:5173")
	v.SetDefault("analyzer", "gemini")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("localllm.url", "http://localhost:1234/v1/chat/completions")
	v.SetDefault("localllm.model", "gemma-3-12b-it:2")
	v.SetDefault("images.store", "disk")
	v.SetDefault("images.dir", "images")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("timeouts.scan", "45s")
	v.SetDefault("timeouts.request", "10s")
}

func fromViper(v *viper.Viper) *Config {
	var c Config
	c.Server.Port = v.GetInt("server.port")
	c.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))
	c.Backend.URL = strings.TrimRight(v.GetString("backend.url"), "/")
	c.Analyzer = strings.ToLower(v.GetString("analyzer"))
	c.Gemini.APIKey = v.GetString("gemini.api_key")
	c.Gemini.Model = v.GetString("gemini.model")
	c.LocalLLM.URL = v.GetString("localllm.url")
	c.LocalLLM.Model = v.GetString("localllm.model")
	c.Auth.URL = strings.TrimRight(v.GetString("auth.url"), "/")
	c.Auth.AnonKey = v.GetString("auth.anon_key")
	c.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	c.Database.URL = v.GetString("database.url")
	c.Images.Store = strings.ToLower(v.GetString("images.store"))
	c.Images.Dir = v.GetString("images.dir")
	c.S3.Bucket = v.GetString("s3.bucket")
	c.S3.Region = v.GetString("s3.region")
	c.Log.Level = v.GetString("log.level")
	c.Log.Format = v.GetString("log.format")
	c.Timeouts.Scan = v.GetDuration("timeouts.scan")
	c.Timeouts.Request = v.GetDuration("timeouts.request")
	return &c
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Backend.URL == "" {
		missing = append(missing, "backend.url")
	}
	if c.Auth.URL == "" {
		missing = append(missing, "auth.url")
	}
	switch c.Analyzer {
	case "gemini":
		if c.Gemini.APIKey == "" {
			missing = append(missing, "gemini.api_key")
		}
	case "local":
	default:
		return fmt.Errorf("unknown analyzer %q", c.Analyzer)
	}
	switch c.Images.Store {
	case "disk", "none":
	case "s3":
		if c.S3.Bucket == "" {
			missing = append(missing, "s3.bucket")
		}
	default:
		return fmt.Errorf("unknown image store %q", c.Images.Store)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
