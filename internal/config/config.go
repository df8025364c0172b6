package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	InstanceID  string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Provider   ProviderConfig
	Generation GenerationConfig
	Referral   ReferralConfig
	Quota      QuotaConfig
	Scheduler  SchedulerConfig
	Payment    PaymentConfig
	Admin      AdminConfig
	Cloud      CloudConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	Enabled       bool
	GenerateRate  float64
	GenerateBurst int
	LockTTL       time.Duration
}

// ProviderConfig configures the DeepSeek chat completions client.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type GenerationConfig struct {
	Timeout           time.Duration
	ComplianceTimeout time.Duration
}

type ReferralConfig struct {
	AwardCredits int64
	ShareBaseURL string
}

type QuotaConfig struct {
	ResetInterval time.Duration
}

type SchedulerConfig struct {
	Enabled           bool
	RunInterval       time.Duration
	BatchSize         int
	RecoveryThreshold time.Duration
	EnabledJobs       []string
}

type PaymentConfig struct {
	RazorpayWebhookSecret string
}

type AdminConfig struct {
	APIToken string
}

type CloudConfig struct {
	Metrics CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "planix"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		InstanceID:   strings.TrimSpace(getenv("INSTANCE_ID", hostname())),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "planix"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			GenerateRate:  getenvFloat("RATE_LIMIT_GENERATE_RATE", 0.2),
			GenerateBurst: getenvInt("RATE_LIMIT_GENERATE_BURST", 3),
			LockTTL:       getenvDuration("RATE_LIMIT_LOCK_TTL", 10*time.Second),
		},
		Provider: ProviderConfig{
			APIKey:  strings.TrimSpace(getenv("DEEPSEEK_API_KEY", "")),
			BaseURL: strings.TrimRight(getenv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"), "/"),
			Model:   getenv("DEEPSEEK_MODEL", "deepseek-chat"),
			Timeout: getenvDuration("DEEPSEEK_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationConfig{
			Timeout:           getenvDuration("GENERATION_TIMEOUT", 30*time.Second),
			ComplianceTimeout: getenvDuration("GENERATION_COMPLIANCE_TIMEOUT", 30*time.Second),
		},
		Referral: ReferralConfig{
			AwardCredits: getenvInt64("REFERRAL_AWARD_CREDITS", 50),
			ShareBaseURL: strings.TrimRight(getenv("REFERRAL_SHARE_BASE_URL", "https://planix.app/signup"), "/"),
		},
		Quota: QuotaConfig{
			ResetInterval: getenvDuration("QUOTA_RESET_INTERVAL", 720*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:       getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:         getenvInt("SCHEDULER_BATCH_SIZE", 100),
			RecoveryThreshold: getenvDuration("SCHEDULER_RECOVERY_THRESHOLD", 15*time.Minute),
			EnabledJobs:       parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		Payment: PaymentConfig{
			RazorpayWebhookSecret: strings.TrimSpace(getenv("RAZORPAY_WEBHOOK_SECRET", "")),
		},
		Admin: AdminConfig{
			APIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		},
		Cloud: CloudConfig{
			Metrics: CloudMetricsConfig{
				Enabled:   getenvBool("CLOUD_METRICS_ENABLED", false),
				Exporter:  strings.ToLower(getenv("CLOUD_METRICS_EXPORTER", "")),
				Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
				AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
				Interval:  getenvDuration("CLOUD_METRICS_INTERVAL", 5*time.Minute),
			},
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "planix"
	}
	return name
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("30s") or bare seconds ("30").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
