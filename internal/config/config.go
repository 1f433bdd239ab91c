package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store and notifier backend names accepted in OTP_STORE, USER_STORE and NOTIFIER.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendDynamo = "dynamo"
	BackendTicket = "ticket"

	NotifierSMTP   = "smtp"
	NotifierResend = "resend"
	NotifierSNS    = "sns"
	NotifierLog    = "log"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	JWTSecret string
	JWTExpiry time.Duration

	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPStore       string // memory | redis | dynamo | ticket
	UserStore      string // dynamo | memory

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	Notifier      string // smtp | resend | sns | log
	SMTPHost      string
	SMTPPort      int
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	ResendAPIKey  string
	SNSRegion     string
	SNSTopicARN   string
	NotifyTimeout time.Duration

	UpstreamTimeout time.Duration

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For and
	// X-Real-Ip headers the rate limiter believes. Empty means none.
	TrustedProxies []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string
	OTPSessions string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "5000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		OTPTTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 3),
		OTPStore:       strings.ToLower(getEnv("OTP_STORE", BackendMemory)),
		UserStore:      strings.ToLower(getEnv("USER_STORE", BackendDynamo)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
			OTPSessions: getEnv("DYNAMO_TABLE_OTP_SESSIONS", "otp_sessions"),
		},

		Notifier:      strings.ToLower(getEnv("NOTIFIER", NotifierSMTP)),
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPFrom:      getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  strings.TrimSpace(getEnv("SMTP_PASSWORD", "")),
		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", getEnv("FRONTEND_URL", "*")), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// IsDevelopment reports whether the service runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1, got %d", c.OTPMaxAttempts))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY_DAYS must be positive"))
	}
	switch c.OTPStore {
	case BackendMemory, BackendRedis, BackendDynamo, BackendTicket:
	default:
		errs = append(errs, fmt.Errorf("unknown OTP_STORE %q", c.OTPStore))
	}
	switch c.UserStore {
	case BackendMemory, BackendDynamo:
	default:
		errs = append(errs, fmt.Errorf("unknown USER_STORE %q", c.UserStore))
	}
	switch c.Notifier {
	case NotifierSMTP, NotifierLog:
	case NotifierResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when NOTIFIER=resend"))
		}
	case NotifierSNS:
		if c.SNSTopicARN == "" {
			errs = append(errs, errors.New("SNS_TOPIC_ARN is required when NOTIFIER=sns"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p))
		}
	}
	if c.Notifier == NotifierLog && !c.IsDevelopment() {
		errs = append(errs, errors.New("NOTIFIER=log is only allowed in development"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma-separated value and drops blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5m", "10s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
