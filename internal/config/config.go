package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// ClientConfig holds the two external configuration points of the client:
// the REST base URL and the live channel endpoint, plus where the credential
// file lives.
type ClientConfig struct {
	APIBaseURL string
	WSURL      string
	TokenFile  string
}

func LoadClientConfig() (ClientConfig, error) {
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		APIBaseURL: "http://localhost:8000",
		WSURL:      "ws://localhost:8000/ws",
	}

	if raw := env.Getenv("LIBCHAT_API_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := env.Getenv("LIBCHAT_WS_URL"); raw != "" {
		cfg.WSURL = raw
	}

	cfg.TokenFile = env.Getenv("LIBCHAT_TOKEN_FILE")
	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ClientConfig{}, fmt.Errorf("resolving home dir: %w", err)
		}
		cfg.TokenFile = filepath.Join(home, ".libchat", "tokens.json")
	}

	return cfg, nil
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Port          int
	MasterSecret  string
	GinMode       string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

func LoadServerConfig() (ServerConfig, error) {
	return LoadServerConfigFromEnv(osEnv{})
}

func LoadServerConfigFromEnv(env Env) (ServerConfig, error) {
	cfg := ServerConfig{
		Port:          8000,
		GinMode:       "release",
		AccessExpiry:  30 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return ServerConfig{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return ServerConfig{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("ACCESS_TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRY_SECONDS")
		}
		cfg.AccessExpiry = time.Duration(seconds) * time.Second
	}
	if raw := env.Getenv("REFRESH_TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRY_SECONDS")
		}
		cfg.RefreshExpiry = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
