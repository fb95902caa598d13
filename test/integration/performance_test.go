package integration

import (
	"context"
	"testing"
	"time"

	"github.com/iwvelando/cultist-circle/internal/circle"
)

// TestPerformance resolves a full five-slot circle over a capped candidate
// pool.
func TestPerformance(t *testing.T) {
	up := newUpstream(t, 400)
	service, conf := newService(t, up.URL)
	ctx := context.Background()

	start := time.Now()
	if _, err := service.Items(ctx, "", "", nil); err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	fetchTime := time.Since(start)

	start = time.Now()
	resp, err := service.Resolve(ctx, circle.Request{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	resolveTime := time.Since(start)

	t.Logf("Performance metrics:")
	t.Logf("  Fetch catalog: %v", fetchTime)
	t.Logf("  Resolve: %v", resolveTime)
	t.Logf("  Candidates: %d", resp.Candidates)

	if resolveTime > 10*time.Second {
		t.Errorf("Resolve time %v exceeds 10 second threshold", resolveTime)
	}
	if resp.Candidates > conf.Selector.CandidateLimit {
		t.Errorf("candidate pool %d exceeds limit %d", resp.Candidates, conf.Selector.CandidateLimit)
	}
}

// TestRepeatedResolves checks that repeated runs stay within the slack window.
func TestRepeatedResolves(t *testing.T) {
	up := newUpstream(t, 120)
	service, conf := newService(t, up.URL)

	for i := 0; i < 10; i++ {
		resp, err := service.Resolve(context.Background(), circle.Request{})
		if err != nil {
			t.Fatalf("Resolve failed on iteration %d: %v", i, err)
		}
		if resp.TotalValue < conf.Threshold || resp.TotalValue > conf.Threshold+conf.Selector.Slack {
			t.Fatalf("iteration %d: total value %d outside the window", i, resp.TotalValue)
		}
	}
}
