package logging

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestRouter(t *testing.T, cfg Config, sink *recordingSink) *Router {
	t.Helper()
	cfg.EnabledSinks = []string{"test"}
	router, err := NewRouter(cfg, SystemClock{}, log.New(nopWriter{}, "", 0), map[string]Sink{"test": sink})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		router.Close(ctx)
	})
	return router
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func waitForCount(t *testing.T, sink *recordingSink, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sink.count() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sink never reached %d events, got %d", want, sink.count())
}

func TestCategoryFloorOverridesGlobalMinimumSeverity(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(t, Config{
		BufferSize:      16,
		MinimumSeverity: SeverityError,
		CategoryFloors:  map[string]Severity{CategoryWebhook: SeverityWarn},
	}, sink)

	router.Publish(context.Background(), Event{Type: "tick", Severity: SeverityInfo, Category: CategorySimulation})
	router.Publish(context.Background(), Event{Type: "delivery_failed", Severity: SeverityWarn, Category: CategoryWebhook})

	waitForCount(t, sink, 1)
	if got := sink.count(); got != 1 {
		t.Fatalf("expected only the webhook event to clear the floor, got %d events", got)
	}
}

func TestStatsTracksCategoryTotals(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(t, Config{
		BufferSize:      16,
		MinimumSeverity: SeverityDebug,
	}, sink)

	router.Publish(context.Background(), Event{Type: "tick", Severity: SeverityInfo, Category: CategorySimulation})
	router.Publish(context.Background(), Event{Type: "tick", Severity: SeverityInfo, Category: CategorySimulation})
	router.Publish(context.Background(), Event{Type: "joined", Severity: SeverityInfo, Category: CategoryConnection})

	waitForCount(t, sink, 3)

	stats := router.Stats()
	if stats.EventsTotal != 3 {
		t.Fatalf("expected 3 events total, got %d", stats.EventsTotal)
	}
	if stats.CategoryTotals[CategorySimulation] != 2 {
		t.Fatalf("expected 2 simulation events, got %d", stats.CategoryTotals[CategorySimulation])
	}
	if stats.CategoryTotals[CategoryConnection] != 1 {
		t.Fatalf("expected 1 connection event, got %d", stats.CategoryTotals[CategoryConnection])
	}
}
