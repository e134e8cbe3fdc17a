package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionIdleTTL time.Duration

	OTPValidity   time.Duration
	OTPCodeLength int

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	RememberMeTTL   time.Duration

	ResetTokenSecret string
	ResetTokenTTL    time.Duration

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	CORSAllowedOrigins []string

	APIRateLimitPerMin    int
	AuthRateLimitPerMin   int
	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string

	AuthAbuseFreeAttempts int
	AuthAbuseBaseDelay    time.Duration
	AuthAbuseMaxDelay     time.Duration
	AuthAbuseResetWindow  time.Duration

	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	EmailDriver   string // "smtp" or "log"
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromEmail string
	SMTPFromName  string
	SMTPTLS       string // "starttls", "tls" or "none"
	SMTPTimeout   time.Duration
	SMTPMaxConns  int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                env,
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		OTPCodeLength:      getEnvInt("OTP_CODE_LENGTH", 6),
		JWTIssuer:          getEnv("JWT_ISSUER", "urbanloom-storefront"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "urbanloom-storefront-api"),
		JWTAccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		ResetTokenSecret:   os.Getenv("RESET_TOKEN_SECRET"),
		CookieDomain:       os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", true),
		CookieSameSite:     strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		APIRateLimitPerMin:    getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		AuthRateLimitPerMin:   getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 20),
		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", true),
		RateLimitRedisPrefix:  getEnv("RATE_LIMIT_REDIS_PREFIX", "ratelimit"),
		AuthAbuseFreeAttempts: getEnvInt("AUTH_ABUSE_FREE_ATTEMPTS", 5),

		EmailDriver:   strings.ToLower(getEnv("EMAIL_DRIVER", "smtp")),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", "accounts@urbanloom.shop"),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "UrbanLoom"),
		SMTPTLS:       strings.ToLower(getEnv("SMTP_TLS", "starttls")),
		SMTPMaxConns:  getEnvInt("SMTP_MAX_CONNS", 4),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "urbanloom-storefront"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.SessionIdleTTL, "SESSION_IDLE_TTL", "30m"},
		{&cfg.OTPValidity, "OTP_VALIDITY", "10m"},
		{&cfg.JWTAccessTTL, "JWT_ACCESS_TTL", "15m"},
		{&cfg.RememberMeTTL, "REMEMBER_ME_TTL", "720h"},
		{&cfg.ResetTokenTTL, "RESET_TOKEN_TTL", "15m"},
		{&cfg.SMTPTimeout, "SMTP_TIMEOUT", "10s"},
		{&cfg.AuthAbuseBaseDelay, "AUTH_ABUSE_BASE_DELAY", "30s"},
		{&cfg.AuthAbuseMaxDelay, "AUTH_ABUSE_MAX_DELAY", "15m"},
		{&cfg.AuthAbuseResetWindow, "AUTH_ABUSE_RESET_WINDOW", "1h"},
		{&cfg.ReadinessProbeTimeout, "READINESS_PROBE_TIMEOUT", "1s"},
		{&cfg.ServerStartGracePeriod, "SERVER_START_GRACE_PERIOD", "0s"},
		{&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", "20s"},
		{&cfg.ShutdownHTTPDrainTimeout, "SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s"},
		{&cfg.ShutdownObservabilityTimeout, "SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s"},
		{&cfg.OTELMetricsExportInterval, "OTEL_METRICS_EXPORT_INTERVAL", "10s"},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if len(c.ResetTokenSecret) < 16 {
		errs = append(errs, "RESET_TOKEN_SECRET must be at least 16 chars")
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.ResetTokenSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and RESET_TOKEN_SECRET must differ")
	}
	if c.SessionIdleTTL <= 0 {
		errs = append(errs, "SESSION_IDLE_TTL must be > 0")
	}
	if c.OTPValidity < time.Minute || c.OTPValidity > time.Hour {
		errs = append(errs, "OTP_VALIDITY must be between 1m and 1h")
	}
	if c.OTPCodeLength < 4 || c.OTPCodeLength > 10 {
		errs = append(errs, "OTP_CODE_LENGTH must be between 4 and 10")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 1h")
	}
	if c.RememberMeTTL < c.JWTAccessTTL || c.RememberMeTTL > (90*24*time.Hour) {
		errs = append(errs, "REMEMBER_ME_TTL must be between JWT_ACCESS_TTL and 90d")
	}
	if c.APIRateLimitPerMin <= 0 || c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "rate limits must be > 0")
	}
	switch c.EmailDriver {
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, "SMTP_HOST is required when EMAIL_DRIVER=smtp")
		}
	case "log":
	default:
		errs = append(errs, "EMAIL_DRIVER must be smtp or log")
	}
	switch c.SMTPTLS {
	case "starttls", "tls", "none":
	default:
		errs = append(errs, "SMTP_TLS must be starttls, tls or none")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
