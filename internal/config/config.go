package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	API      APIConfig
	Cache    CacheConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port string `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig - настройки подключения к БД.
// Driver переключает postgres (прод) и sqlite (локальная разработка).
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName   string `env:"DB_NAME" envDefault:"organigram"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	Path     string `env:"DB_PATH" envDefault:"organigram.db"`
}

// APIConfig - настройки генерируемого API
type APIConfig struct {
	DefaultPageSize int `env:"API_DEFAULT_PAGE_SIZE" envDefault:"10"`
	MaxPageSize     int `env:"API_MAX_PAGE_SIZE" envDefault:"100"`
	MaxFilterDepth  int `env:"API_MAX_FILTER_DEPTH" envDefault:"3"`
}

// CacheConfig - настройки кеша ответов; кеш сбрасывается целиком при любой записи
type CacheConfig struct {
	Enabled    bool          `env:"CACHE_ENABLED" envDefault:"true"`
	TTL        time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	MaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`
}

// DSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
