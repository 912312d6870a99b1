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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Cache         CacheConfig
	Calendar      CalendarConfig
	Enrollment    EnrollmentConfig
	Workflow      WorkflowConfig
	Notifications NotificationConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig backs the calendar cache and the notification channel.
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs redis caching of calendar lookups.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// CalendarConfig points at an optional academic calendar seed file.
type CalendarConfig struct {
	SeedFile string
}

// EnrollmentConfig tunes seat allocation.
type EnrollmentConfig struct {
	PreferenceWeight float64
	PriorityWeight   float64
	// WaitlistMaxLength is nil when waitlists are unbounded.
	WaitlistMaxLength *int
	AllocateOnSubmit  bool
	AllocationWorkers int
}

// WorkflowConfig governs schedule change approval and SLA escalation.
type WorkflowConfig struct {
	SLAHoursNormal       int
	SLAHoursUrgent       int
	AutoApproveThreshold int
	EscalationEnabled    bool
	EscalationTarget     string
	SweepInterval        time.Duration
}

// NotificationConfig controls status event fan-out.
type NotificationConfig struct {
	Enabled bool
	Workers int
	Retries int
	Channel string
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

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnMaxIdleTime: parseDuration(v.GetString("DB_CONN_MAX_IDLE_TIME"), 30*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.Calendar = CalendarConfig{SeedFile: v.GetString("CALENDAR_SEED_FILE")}

	waitlistMax, err := parseOptionalInt(v.GetString("WAITLIST_MAX_LENGTH"))
	if err != nil {
		return nil, err
	}
	cfg.Enrollment = EnrollmentConfig{
		PreferenceWeight:  v.GetFloat64("ENROLLMENT_PREFERENCE_WEIGHT"),
		PriorityWeight:    v.GetFloat64("ENROLLMENT_PRIORITY_WEIGHT"),
		WaitlistMaxLength: waitlistMax,
		AllocateOnSubmit:  v.GetBool("ENROLLMENT_ALLOCATE_ON_SUBMIT"),
		AllocationWorkers: v.GetInt("ENROLLMENT_ALLOCATION_WORKERS"),
	}

	cfg.Workflow = WorkflowConfig{
		SLAHoursNormal:       v.GetInt("SLA_HOURS_NORMAL"),
		SLAHoursUrgent:       v.GetInt("SLA_HOURS_URGENT"),
		AutoApproveThreshold: v.GetInt("AUTO_APPROVE_THRESHOLD"),
		EscalationEnabled:    v.GetBool("ENABLE_ESCALATION"),
		EscalationTarget:     v.GetString("ESCALATION_TARGET"),
		SweepInterval:        parseDuration(v.GetString("SLA_SWEEP_INTERVAL"), 5*time.Minute),
	}

	cfg.Notifications = NotificationConfig{
		Enabled: v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers: v.GetInt("NOTIFICATION_WORKERS"),
		Retries: v.GetInt("NOTIFICATION_RETRIES"),
		Channel: v.GetString("NOTIFICATION_CHANNEL"),
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
	v.SetDefault("DB_NAME", "sma_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("CALENDAR_SEED_FILE", "")

	v.SetDefault("ENROLLMENT_PREFERENCE_WEIGHT", 10.0)
	v.SetDefault("ENROLLMENT_PRIORITY_WEIGHT", 1.0)
	v.SetDefault("WAITLIST_MAX_LENGTH", "")
	v.SetDefault("ENROLLMENT_ALLOCATE_ON_SUBMIT", false)
	v.SetDefault("ENROLLMENT_ALLOCATION_WORKERS", 1)

	v.SetDefault("SLA_HOURS_NORMAL", 72)
	v.SetDefault("SLA_HOURS_URGENT", 24)
	v.SetDefault("AUTO_APPROVE_THRESHOLD", 3)
	v.SetDefault("ENABLE_ESCALATION", true)
	v.SetDefault("ESCALATION_TARGET", "registrar")
	v.SetDefault("SLA_SWEEP_INTERVAL", "5m")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_RETRIES", 3)
	v.SetDefault("NOTIFICATION_CHANNEL", "enrollment.events")
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

// parseOptionalInt returns nil for an empty value so "unset" stays distinct from zero.
func parseOptionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("WAITLIST_MAX_LENGTH must be an integer")
	}
	if n < 0 {
		return nil, errors.New("WAITLIST_MAX_LENGTH must not be negative")
	}
	return &n, nil
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
