package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Toggler TogglerConfig
	Watch   WatchConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	toggler, err := loadTogglerConfig()
	if err != nil {
		return nil, err
	}

	watch, err := loadWatchConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Toggler: toggler, Watch: watch}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr       string
	CORSOrigin string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	cors := getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*")

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, CORSOrigin: cors}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigin: cors}, nil
}

// TogglerConfig 描述后台权限翻转任务的配置。
type TogglerConfig struct {
	Enabled    bool
	Profile    string
	Permission string
	Interval   time.Duration
}

func loadTogglerConfig() (TogglerConfig, error) {
	enabled, err := parseBoolEnv("TOGGLER_ENABLED", true)
	if err != nil {
		return TogglerConfig{}, err
	}

	interval, err := parseDurationEnv("TOGGLER_INTERVAL", 5*time.Minute)
	if err != nil {
		return TogglerConfig{}, err
	}
	if interval <= 0 {
		return TogglerConfig{}, fmt.Errorf("invalid TOGGLER_INTERVAL value %q: must be positive", interval)
	}

	return TogglerConfig{
		Enabled:    enabled,
		Profile:    getEnvOrDefault("TOGGLER_PROFILE", "Admin"),
		Permission: getEnvOrDefault("TOGGLER_PERMISSION", "CanEdit"),
		Interval:   interval,
	}, nil
}

// WatchConfig 描述变更推送的配置。
type WatchConfig struct {
	Buffer int
}

func loadWatchConfig() (WatchConfig, error) {
	buffer := 16
	if override, err := parseOptionalIntEnv("WATCH_BUFFER"); err != nil {
		return WatchConfig{}, err
	} else if override != nil {
		if *override < 1 {
			buffer = 1
		} else {
			buffer = *override
		}
	}
	return WatchConfig{Buffer: buffer}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
