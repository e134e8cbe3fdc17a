package config

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() *Config {
	return &Config{
		Env:                       "development",
		HTTPPort:                  "8080",
		DatabaseURL:               "postgres://x",
		RedisAddr:                 "localhost:6379",
		SessionIdleTTL:            30 * time.Minute,
		OTPValidity:               10 * time.Minute,
		OTPCodeLength:             6,
		JWTAccessSecret:           "abcdefghijklmnopqrstuvwxyz123456",
		JWTAccessTTL:              15 * time.Minute,
		RememberMeTTL:             720 * time.Hour,
		ResetTokenSecret:          "reset-secret-12345",
		ResetTokenTTL:             15 * time.Minute,
		CookieSameSite:            "lax",
		APIRateLimitPerMin:        120,
		AuthRateLimitPerMin:       20,
		EmailDriver:               "log",
		SMTPTLS:                   "starttls",
		OTELExporterOTLPEndpoint:  "localhost:4317",
		OTELTraceSamplingRatio:    1.0,
		OTELMetricsExportInterval: 10 * time.Second,
		OTELLogLevel:              "info",
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := validTestConfig()
	cfg.DatabaseURL = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.JWTAccessSecret = "short"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short JWT secret")
	}
}

func TestValidateRejectsSharedSecrets(t *testing.T) {
	cfg := validTestConfig()
	cfg.ResetTokenSecret = cfg.JWTAccessSecret

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared-secret error, got %v", err)
	}
}

func TestValidateBoundsOTPValidity(t *testing.T) {
	for _, v := range []time.Duration{30 * time.Second, 2 * time.Hour} {
		cfg := validTestConfig()
		cfg.OTPValidity = v
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for OTP validity %s", v)
		}
	}
}

func TestValidateRequiresSMTPHostForSMTPDriver(t *testing.T) {
	cfg := validTestConfig()
	cfg.EmailDriver = "smtp"
	cfg.SMTPHost = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SMTP_HOST") {
		t.Fatalf("expected SMTP_HOST error, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("RESET_TOKEN_SECRET", "reset-secret-12345")
	t.Setenv("EMAIL_DRIVER", "log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OTPValidity != 10*time.Minute {
		t.Errorf("OTPValidity = %s, want 10m", cfg.OTPValidity)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %s, want 30m", cfg.SessionIdleTTL)
	}
	if cfg.OTPCodeLength != 6 {
		t.Errorf("OTPCodeLength = %d, want 6", cfg.OTPCodeLength)
	}
}
