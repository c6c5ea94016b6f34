package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"smarthms/server/middleware"
)

// Config конфигурация сервера
type Config struct {
	// Сервер
	Port           string
	AllowedOrigins []string
	// Адреса или CIDR прокси, которым доверяется X-Forwarded-For
	TrustedProxies []string

	// База данных
	DatabasePath string

	// Connection pooling
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Логирование
	LogBufferSize int

	// Классификатор симптомов
	SymptomModelPath string
	SymptomDataPath  string
	SymptomWatchData bool

	// Аутентификация
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Ограничение частоты запросов
	RateLimitRPS   float64
	RateLimitBurst int

	// Кеш панели администратора
	DashboardCacheTTL time.Duration
}

// fileConfig значения из TOML файла, переменные окружения имеют приоритет
type fileConfig struct {
	Port              string   `toml:"port"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	TrustedProxies    []string `toml:"trusted_proxies"`
	DatabasePath      string   `toml:"database_path"`
	MaxOpenConns      int      `toml:"db_max_open_conns"`
	MaxIdleConns      int      `toml:"db_max_idle_conns"`
	ConnMaxLifetime   string   `toml:"db_conn_max_lifetime"`
	LogBufferSize     int      `toml:"log_buffer_size"`
	SymptomModelPath  string   `toml:"symptom_model_path"`
	SymptomDataPath   string   `toml:"symptom_data_path"`
	SymptomWatchData  *bool    `toml:"symptom_watch_data"`
	AccessTokenTTL    string   `toml:"access_token_ttl"`
	RefreshTokenTTL   string   `toml:"refresh_token_ttl"`
	RateLimitRPS      float64  `toml:"rate_limit_rps"`
	RateLimitBurst    int      `toml:"rate_limit_burst"`
	DashboardCacheTTL string   `toml:"dashboard_cache_ttl"`
}

// DefaultConfig значения по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Port:              "8000",
		DatabasePath:      "hms.db",
		MaxOpenConns:      25,
		MaxIdleConns:      5,
		ConnMaxLifetime:   5 * time.Minute,
		LogBufferSize:     100,
		SymptomModelPath:  "symptom_model.mp",
		SymptomDataPath:   "symptom_data.csv",
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RateLimitRPS:      5,
		RateLimitBurst:    10,
		DashboardCacheTTL: 30 * time.Second,
	}
}

// LoadConfig загружает конфигурацию: .env, затем TOML файл из HMS_CONFIG_FILE,
// затем переменные окружения
func LoadConfig() (*Config, error) {
	// .env не переопределяет уже заданные переменные
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := DefaultConfig()
	if path := os.Getenv("HMS_CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	// Валидация
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// applyFile накладывает непустые значения из TOML файла
func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if len(fc.TrustedProxies) > 0 {
		c.TrustedProxies = fc.TrustedProxies
	}
	if fc.DatabasePath != "" {
		c.DatabasePath = fc.DatabasePath
	}
	if fc.MaxOpenConns != 0 {
		c.MaxOpenConns = fc.MaxOpenConns
	}
	if fc.MaxIdleConns != 0 {
		c.MaxIdleConns = fc.MaxIdleConns
	}
	if fc.LogBufferSize != 0 {
		c.LogBufferSize = fc.LogBufferSize
	}
	if fc.SymptomModelPath != "" {
		c.SymptomModelPath = fc.SymptomModelPath
	}
	if fc.SymptomDataPath != "" {
		c.SymptomDataPath = fc.SymptomDataPath
	}
	if fc.SymptomWatchData != nil {
		c.SymptomWatchData = *fc.SymptomWatchData
	}
	if fc.RateLimitRPS != 0 {
		c.RateLimitRPS = fc.RateLimitRPS
	}
	if fc.RateLimitBurst != 0 {
		c.RateLimitBurst = fc.RateLimitBurst
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"db_conn_max_lifetime", fc.ConnMaxLifetime, &c.ConnMaxLifetime},
		{"access_token_ttl", fc.AccessTokenTTL, &c.AccessTokenTTL},
		{"refresh_token_ttl", fc.RefreshTokenTTL, &c.RefreshTokenTTL},
		{"dashboard_cache_ttl", fc.DashboardCacheTTL, &c.DashboardCacheTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s: %w", path, d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// applyEnv накладывает переменные окружения
func (c *Config) applyEnv() {
	// Сервер
	c.Port = getEnv("SERVER_PORT", c.Port)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		c.TrustedProxies = splitList(proxies)
	}

	// База данных
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)

	// Connection pooling
	c.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)

	// Логирование
	c.LogBufferSize = getEnvInt("LOG_BUFFER_SIZE", c.LogBufferSize)

	// Классификатор
	c.SymptomModelPath = getEnv("SYMPTOM_MODEL_PATH", c.SymptomModelPath)
	c.SymptomDataPath = getEnv("SYMPTOM_DATA_PATH", c.SymptomDataPath)
	c.SymptomWatchData = getEnvBool("SYMPTOM_WATCH_DATA", c.SymptomWatchData)

	// Аутентификация
	c.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", c.AccessTokenTTL)
	c.RefreshTokenTTL = getEnvDuration("REFRESH_TOKEN_TTL", c.RefreshTokenTTL)

	// Rate limiting
	c.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	c.DashboardCacheTTL = getEnvDuration("DASHBOARD_CACHE_TTL", c.DashboardCacheTTL)
}

// Validate валидирует конфигурацию
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}

	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("max idle connections must be greater than 0")
	}

	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle connections cannot be greater than max open connections")
	}

	if c.LogBufferSize <= 0 {
		return fmt.Errorf("log buffer size must be greater than 0")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	if _, err := middleware.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}

	if c.SymptomWatchData && c.SymptomDataPath == "" {
		return fmt.Errorf("symptom data path is required when watching is enabled")
	}

	return nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
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
