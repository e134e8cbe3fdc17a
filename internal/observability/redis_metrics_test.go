package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func newHookForTest(t *testing.T) *redisMetricsHook {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { _ = client.Close() })
	hook, err := newRedisMetricsHook(client)
	if err != nil {
		t.Fatalf("build hook: %v", err)
	}
	return hook
}

func TestInstrumentRedisClientNilClient(t *testing.T) {
	InstrumentRedisClient(nil, nil)
}

func TestRedisMetricsHookProcessCounters(t *testing.T) {
	hook := newHookForTest(t)
	ctx := context.Background()
	process := hook.ProcessHook(func(_ context.Context, cmd redis.Cmder) error {
		return cmd.Err()
	})

	hit := redis.NewStringCmd(ctx, "get", "session:abc")
	hit.SetVal("staged")
	if err := process(ctx, hit); err != nil {
		t.Fatalf("hit: %v", err)
	}

	miss := redis.NewStringCmd(ctx, "get", "session:gone")
	miss.SetErr(redis.Nil)
	if err := process(ctx, miss); !errors.Is(err, redis.Nil) {
		t.Fatalf("miss err = %v, want redis.Nil", err)
	}

	down := redis.NewStringCmd(ctx, "get", "session:abc")
	down.SetErr(errors.New("connection refused"))
	if err := process(ctx, down); err == nil {
		t.Fatal("expected connection error to surface")
	}

	if got := hook.cmdTotalAtomic.Load(); got != 3 {
		t.Errorf("command total = %d, want 3", got)
	}
	// redis.Nil is a miss, not an error.
	if got := hook.cmdErrorAtomic.Load(); got != 1 {
		t.Errorf("command errors = %d, want 1", got)
	}
	if got := hook.keyHitAtomic.Load(); got != 1 {
		t.Errorf("keyspace hits = %d, want 1", got)
	}
	if got := hook.keyMissAtomic.Load(); got != 1 {
		t.Errorf("keyspace misses = %d, want 1", got)
	}
}

func TestRedisMetricsHookClassifiesLookupShapes(t *testing.T) {
	ctx := context.Background()

	exists := redis.NewIntCmd(ctx, "exists", "abuse:login:a@x.com")
	exists.SetVal(1)
	if hits, misses, ok := classifyKeyspaceOutcome(exists); !ok || hits != 1 || misses != 0 {
		t.Errorf("exists = (%d, %d, %v), want hit", hits, misses, ok)
	}

	hmget := redis.NewSliceCmd(ctx, "hmget", "abuse:login:a@x.com", "last_failure_ms", "cooldown_until_ms")
	hmget.SetVal([]interface{}{"1700000000000", nil})
	if hits, misses, ok := classifyKeyspaceOutcome(hmget); !ok || hits != 1 || misses != 1 {
		t.Errorf("hmget = (%d, %d, %v), want one hit one miss", hits, misses, ok)
	}

	del := redis.NewIntCmd(ctx, "del", "session:abc")
	del.SetVal(1)
	if _, _, ok := classifyKeyspaceOutcome(del); ok {
		t.Error("del is not a keyspace lookup")
	}
}

func TestRedisMetricsHookPipelineCounters(t *testing.T) {
	hook := newHookForTest(t)
	ctx := context.Background()
	process := hook.ProcessPipelineHook(func(_ context.Context, _ []redis.Cmder) error {
		return nil
	})

	hset := redis.NewIntCmd(ctx, "hset", "session:abc", "otp_email", "a@x.com")
	expire := redis.NewBoolCmd(ctx, "expire", "session:abc", 1800)
	if err := process(ctx, []redis.Cmder{hset, expire}); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if got := hook.cmdTotalAtomic.Load(); got != 2 {
		t.Errorf("command total = %d, want 2", got)
	}
	if got := hook.cmdErrorAtomic.Load(); got != 0 {
		t.Errorf("command errors = %d, want 0", got)
	}
}

func TestClassifyRedisError(t *testing.T) {
	cases := map[string]string{
		"dial tcp: i/o timeout":         "timeout",
		"connection reset by peer":      "connection",
		"ERR wrong number of arguments": "other",
	}
	for msg, want := range cases {
		if got := classifyRedisError(errors.New(msg)); got != want {
			t.Errorf("classifyRedisError(%q) = %q, want %q", msg, got, want)
		}
	}
}
