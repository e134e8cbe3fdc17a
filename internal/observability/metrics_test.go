package observability

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	ctx := context.Background()
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	// Smoke-call every helper with appMetrics=nil; they should all no-op safely.
	RecordOTPIssued(ctx, "registration", "sent")
	RecordOTPVerification(ctx, "registration", "confirmed")
	RecordLogin(ctx, "success")
	RecordPasswordReset(ctx, "completed")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)
}

func TestRecordMetricHelpersEmitData(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	meter := provider.Meter("urbanloom-storefront-test")
	otpIssued, err := meter.Int64Counter("auth.otp.issued")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	otpVerifications, err := meter.Int64Counter("auth.otp.verifications")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	logins, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	resets, err := meter.Int64Counter("auth.password_reset.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	reqDuration, err := meter.Float64Histogram("auth.request.duration")
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	healthResults, err := meter.Int64Counter("health.check.results")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	healthDuration, err := meter.Float64Histogram("health.check.duration")
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		otpIssuedCounter:         otpIssued,
		otpVerificationCounter:   otpVerifications,
		loginCounter:             logins,
		passwordResetCounter:     resets,
		authReqDuration:          reqDuration,
		healthCheckResultCounter: healthResults,
		healthCheckDuration:      healthDuration,
	}
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	RecordOTPIssued(ctx, "registration", "sent")
	RecordOTPVerification(ctx, "reset", "confirmed")
	RecordLogin(ctx, "success")
	RecordPasswordReset(ctx, "completed")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordHealthCheckResult(ctx, "db", "ready")
	RecordHealthCheckDuration(ctx, "db", 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected emitted metrics")
	}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = true
		}
	}
	for _, name := range []string{
		"auth.otp.issued",
		"auth.otp.verifications",
		"auth.login.attempts",
		"auth.password_reset.events",
		"auth.request.duration",
		"health.check.results",
		"health.check.duration",
	} {
		if !seen[name] {
			t.Errorf("metric %s not emitted; saw %v", name, seen)
		}
	}
}
