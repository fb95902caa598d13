package circle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwvelando/cultist-circle/internal/catalog"
	"github.com/iwvelando/cultist-circle/internal/selector"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

// blockingCatalog holds every snapshot load until release is closed.
type blockingCatalog struct {
	fakeCatalog
	release chan struct{}
}

func (b blockingCatalog) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return catalog.Snapshot{}, ctx.Err()
	}
	return b.fakeCatalog.Snapshot(ctx)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func TestSessionSupersedes(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(t, fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}})
	session := svc.NewSession()
	defer session.Close()

	first := session.Submit(context.Background(), Request{})
	second := session.Submit(context.Background(), Request{})

	if res := waitResult(t, first); res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("superseded request should succeed or be cancelled, got %v", res.Err)
	}
	res := waitResult(t, second)
	if res.Err != nil {
		t.Fatalf("latest request failed: %v", res.Err)
	}
	if res.Response.TotalCost != 9000 || !res.Response.ThresholdMet {
		t.Fatalf("unexpected response %+v", res.Response)
	}
}

func TestSessionReportsPreparationErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestService(t, fakeProvider{})
	session := svc.NewSession()
	defer session.Close()

	res := waitResult(t, session.Submit(context.Background(), Request{Mode: "arena"}))
	if !errors.Is(res.Err, selector.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", res.Err)
	}
}

func TestSessionSubmitDoesNotWaitForCatalog(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	svc := newTestService(t, fakeProvider{catalog.ModePVE: blockingCatalog{
		fakeCatalog: fakeCatalog{items: testItems()},
		release:     release,
	}})
	session := svc.NewSession()
	defer session.Close()

	submitted := make(chan (<-chan Result), 1)
	go func() {
		submitted <- session.Submit(context.Background(), Request{})
	}()
	var first <-chan Result
	select {
	case first = <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked on the catalog load")
	}

	second := session.Submit(context.Background(), Request{})
	if res := waitResult(t, first); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected the loading request to be cancelled, got %v", res.Err)
	}

	close(release)
	res := waitResult(t, second)
	if res.Err != nil {
		t.Fatalf("latest request failed: %v", res.Err)
	}
	if res.Response.TotalCost != 9000 {
		t.Fatalf("expected cost 9000, got %d", res.Response.TotalCost)
	}
}

func loadYAMLRequest(path string) (Request, error) {
	var req Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	err = yaml.Unmarshal(data, &req)
	return req, err
}

func TestSessionWatchResolvesOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "request.yaml")
	if err := os.WriteFile(path, []byte("threshold: 350000\n"), 0o644); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	svc := newTestService(t, fakeProvider{catalog.ModePVE: fakeCatalog{items: testItems()}})
	session := svc.NewSession()
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan Result, 16)
	done := make(chan error, 1)
	go func() {
		done <- session.Watch(ctx, path, loadYAMLRequest, func(res Result) {
			results <- res
		})
	}()

	waitThreshold := func(want int64) Response {
		t.Helper()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case res := <-results:
				if res.Err != nil {
					t.Fatalf("watch delivered an error: %v", res.Err)
				}
				if res.Response.Threshold == want {
					return res.Response
				}
			case <-deadline:
				t.Fatalf("timed out waiting for a result with threshold %d", want)
			}
		}
	}

	if resp := waitThreshold(350000); resp.TotalCost != 9000 {
		t.Fatalf("expected cost 9000, got %d", resp.TotalCost)
	}

	if err := os.WriteFile(path, []byte("threshold: 250000\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite request: %v", err)
	}
	// a+c is the only pair inside the slack window.
	if resp := waitThreshold(250000); resp.TotalCost != 6000 {
		t.Fatalf("expected cost 6000, got %d", resp.TotalCost)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestSessionWatchMissingDirectory(t *testing.T) {
	svc := newTestService(t, fakeProvider{})
	session := svc.NewSession()
	defer session.Close()

	path := filepath.Join(t.TempDir(), "missing", "request.yaml")
	err := session.Watch(context.Background(), path, loadYAMLRequest, func(Result) {})
	if err == nil {
		t.Fatal("expected an error for an unwatchable path")
	}
}
