package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"rationalize/resolution"
)

// Config конфигурация сервера
type Config struct {
	// Сервер
	Port string `json:"port"`

	// База данных
	DatabasePath string `json:"database_path"`

	// Логирование
	LogLevel string `json:"log_level"`

	// Entity Resolution
	EntityResolution EntityResolutionConfig `json:"entity_resolution"`

	// Геокодирование
	Geocoding GeocodingConfig `json:"geocoding"`
}

// EntityResolutionConfig пороги автоматического разрешения
type EntityResolutionConfig struct {
	AutoMergeThreshold float64 `json:"auto_merge_threshold"`
	ReviewThreshold    float64 `json:"review_threshold"`
}

// GeocodingConfig конфигурация опционального геокодера
type GeocodingConfig struct {
	Enabled        bool   `json:"enabled"`
	BaseURL        string `json:"base_url"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	CachePath      string `json:"cache_path"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Port:         "8090",
		DatabasePath: "rationalize.db",
		LogLevel:     "info",
		EntityResolution: EntityResolutionConfig{
			AutoMergeThreshold: 0.90,
			ReviewThreshold:    0.50,
		},
		Geocoding: GeocodingConfig{
			Enabled:        false,
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "rationalize-dashboard",
			TimeoutSeconds: 5,
			CachePath:      "geocode_cache.json",
		},
	}
}

// Load читает конфигурацию из JSON-файла и применяет переопределения из
// окружения. Отсутствующий файл — не ошибка: берутся значения по
// умолчанию, оркестратор не должен падать из-за отсутствия конфигурации.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// applyEnv применяет переопределения из переменных окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("RATIONALIZE_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("RATIONALIZE_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("RATIONALIZE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RATIONALIZE_AUTO_MERGE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.EntityResolution.AutoMergeThreshold = f
		}
	}
	if v := os.Getenv("RATIONALIZE_REVIEW_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.EntityResolution.ReviewThreshold = f
		}
	}
	if v := os.Getenv("RATIONALIZE_GEOCODING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Geocoding.Enabled = b
		}
	}
}

// normalize приводит сомнительные значения к безопасным умолчаниям
func (c *Config) normalize() {
	defaults := Default()
	if c.EntityResolution.AutoMergeThreshold <= 0 || c.EntityResolution.AutoMergeThreshold > 1 {
		c.EntityResolution.AutoMergeThreshold = defaults.EntityResolution.AutoMergeThreshold
	}
	if c.EntityResolution.ReviewThreshold <= 0 || c.EntityResolution.ReviewThreshold > 1 {
		c.EntityResolution.ReviewThreshold = defaults.EntityResolution.ReviewThreshold
	}
	if c.Geocoding.TimeoutSeconds <= 0 {
		c.Geocoding.TimeoutSeconds = defaults.Geocoding.TimeoutSeconds
	}
	if c.Port == "" {
		c.Port = defaults.Port
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
}

// Thresholds возвращает пороги для оркестратора
func (c *Config) Thresholds() resolution.Thresholds {
	return resolution.Thresholds{
		AutoMerge: c.EntityResolution.AutoMergeThreshold,
		Review:    c.EntityResolution.ReviewThreshold,
	}
}

// GeocodingTimeout таймаут одного запроса геокодера
func (c *Config) GeocodingTimeout() time.Duration {
	return time.Duration(c.Geocoding.TimeoutSeconds) * time.Second
}
