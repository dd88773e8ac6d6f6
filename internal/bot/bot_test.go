package bot

import (
	"context"
	"testing"

	"github.com/cretee/creteebot/internal/ratelimit"
)

func TestAllow_NoLimiterConfigured(t *testing.T) {
	b := &Bot{}
	if !b.allow(context.Background(), 1) {
		t.Fatal("expected allow with no limiter")
	}
	b = &Bot{limiter: ratelimit.NewManager(nil, nil, nil), limit: 0}
	if !b.allow(context.Background(), 1) {
		t.Fatal("expected allow with zero limit")
	}
}

func TestAllow_ThrottlesBurst(t *testing.T) {
	b := &Bot{limiter: ratelimit.NewManager(nil, nil, nil), limit: 1}

	// Five back-to-back calls span at most two one-second windows, so with a
	// limit of one at least three of them must be rejected.
	denied := 0
	for i := 0; i < 5; i++ {
		if !b.allow(context.Background(), 99) {
			denied++
		}
	}
	if denied < 3 {
		t.Fatalf("expected at least 3 denials, got %d", denied)
	}

	// Another user is counted independently.
	if !b.allow(context.Background(), 100) {
		t.Fatal("expected allow for a different user")
	}
}
