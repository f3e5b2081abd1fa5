package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Library   LibraryConfig
	Analytics AnalyticsConfig
	Media     MediaConfig
	Reports   ReportsConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	CookieName        string
	CookieMaxAge      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LibraryConfig drives course eligibility and ranking.
type LibraryConfig struct {
	GeneralPrefixes       []string
	Levels                []int
	PageSize              int
	AtomicDownloadCounter bool
}

// AnalyticsConfig governs the admin analytics snapshot.
type AnalyticsConfig struct {
	Enabled     bool
	CacheTTL    time.Duration
	TopLimit    int
	RecentLimit int
	Timezone    string
}

// MediaConfig holds credentials for the external signed-upload host.
type MediaConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// ReportsConfig configures asynchronous analytics exports.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// RateLimitConfig bounds per-client request rates on sensitive routes.
type RateLimitConfig struct {
	DownloadsPerMinute int
	LoginPerMinute     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		CookieName:        v.GetString("AUTH_COOKIE_NAME"),
		CookieMaxAge:      parseDuration(v.GetString("AUTH_COOKIE_MAX_AGE"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Library = LibraryConfig{
		GeneralPrefixes:       upperAll(splitAndTrim(v.GetString("LIBRARY_GENERAL_PREFIXES"))),
		Levels:                parseLevels(v.GetString("LIBRARY_LEVELS")),
		PageSize:              v.GetInt("LIBRARY_PAGE_SIZE"),
		AtomicDownloadCounter: v.GetBool("LIBRARY_ATOMIC_DOWNLOAD_COUNTER"),
	}

	cfg.Analytics = AnalyticsConfig{
		Enabled:     v.GetBool("ENABLE_ANALYTICS"),
		CacheTTL:    parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 2*time.Minute),
		TopLimit:    v.GetInt("ANALYTICS_TOP_LIMIT"),
		RecentLimit: v.GetInt("ANALYTICS_RECENT_LIMIT"),
		Timezone:    v.GetString("ANALYTICS_TIMEZONE"),
	}

	cfg.Media = MediaConfig{
		CloudName: v.GetString("MEDIA_CLOUD_NAME"),
		APIKey:    v.GetString("MEDIA_API_KEY"),
		APISecret: v.GetString("MEDIA_API_SECRET"),
		Folder:    v.GetString("MEDIA_UPLOAD_FOLDER"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.RateLimit = RateLimitConfig{
		DownloadsPerMinute: v.GetInt("RATE_LIMIT_DOWNLOADS_PER_MINUTE"),
		LoginPerMinute:     v.GetInt("RATE_LIMIT_LOGIN_PER_MINUTE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "elib")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "elib-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("AUTH_COOKIE_NAME", "elib_access_token")
	v.SetDefault("AUTH_COOKIE_MAX_AGE", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LIBRARY_GENERAL_PREFIXES", "GNS")
	v.SetDefault("LIBRARY_LEVELS", "100,200,300,400,500,600")
	v.SetDefault("LIBRARY_PAGE_SIZE", 20)
	v.SetDefault("LIBRARY_ATOMIC_DOWNLOAD_COUNTER", false)

	v.SetDefault("ENABLE_ANALYTICS", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "2m")
	v.SetDefault("ANALYTICS_TOP_LIMIT", 5)
	v.SetDefault("ANALYTICS_RECENT_LIMIT", 20)
	v.SetDefault("ANALYTICS_TIMEZONE", "UTC")

	v.SetDefault("MEDIA_CLOUD_NAME", "")
	v.SetDefault("MEDIA_API_KEY", "")
	v.SetDefault("MEDIA_API_SECRET", "")
	v.SetDefault("MEDIA_UPLOAD_FOLDER", "rcf-elib")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("RATE_LIMIT_DOWNLOADS_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_LOGIN_PER_MINUTE", 10)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func upperAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}

// parseLevels ignores entries that are not positive integers.
func parseLevels(raw string) []int {
	parts := splitAndTrim(raw)
	levels := make([]int, 0, len(parts))
	for _, part := range parts {
		level, err := strconv.Atoi(part)
		if err != nil || level <= 0 {
			continue
		}
		levels = append(levels, level)
	}
	return levels
}
