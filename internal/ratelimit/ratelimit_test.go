package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2; i++ {
		result, errAllow := limiter.Allow(ctx, "u:1", 2, now)
		if errAllow != nil {
			t.Fatalf("allow %d: %v", i, errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	result, errAllow := limiter.Allow(ctx, "u:1", 2, now)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatal("third request in the same second should be rejected")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected zero remaining, got %d", result.Remaining)
	}

	// Next second opens a fresh window.
	result, errAllow = limiter.Allow(ctx, "u:1", 2, now.Add(time.Second))
	if errAllow != nil {
		t.Fatalf("allow next window: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatal("request in the next window should be allowed")
	}

	// Other keys are independent.
	result, _ = limiter.Allow(ctx, "u:2", 2, now)
	if !result.Allowed {
		t.Fatal("distinct key must not share the window")
	}
}

func TestManager_MemoryFallbackWhenRedisDisabled(t *testing.T) {
	m := NewManager(StaticProvider(SettingsConfig{Limit: 1}), nil, nil)
	ctx := context.Background()

	result, errAllow := m.Allow(ctx, "u:1", 1)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatal("first request should be allowed")
	}
	result, _ = m.Allow(ctx, "u:1", 1)
	if result.Allowed {
		t.Fatal("second request in the same second should be rejected")
	}
}

func TestManager_ZeroLimitAllowsEverything(t *testing.T) {
	m := NewManager(nil, nil, nil)
	for i := 0; i < 10; i++ {
		result, errAllow := m.Allow(context.Background(), "u:1", 0)
		if errAllow != nil || !result.Allowed {
			t.Fatalf("zero limit must never reject: %+v, %v", result, errAllow)
		}
	}
}

func TestKeyForUser(t *testing.T) {
	if got := KeyForUser(42); got != "u:42" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyForUser(0); got != "" {
		t.Fatalf("zero identity must produce no key, got %q", got)
	}
}

func TestSettingsNormalize(t *testing.T) {
	cfg := SettingsConfig{Limit: -1, RedisAddr: " localhost:6379 ", RedisDB: -2}.Normalize()
	if cfg.Limit != 0 {
		t.Fatalf("negative limit should clamp to 0, got %d", cfg.Limit)
	}
	if cfg.RedisAddr != "localhost:6379" || !cfg.RedisEnabled {
		t.Fatalf("address should be trimmed and enable redis: %+v", cfg)
	}
	if cfg.RedisDB != 0 || cfg.RedisPrefix != DefaultRedisPrefix {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	bare := SettingsConfig{Limit: 1}.Normalize()
	if bare.RedisEnabled {
		t.Fatal("no address must leave redis disabled")
	}
}
