package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []SecurityAlert
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, alert SecurityAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func TestTriggerCreatesOpenAlert(t *testing.T) {
	store := newMemoryStore()
	notifier := &fakeNotifier{}
	engine := NewAlertEngine(store, notifier)

	engine.Trigger(context.Background(), SecurityAlert{
		AlertType:   AlertSuspiciousPattern,
		Severity:    SeverityLow,
		RequestorID: "vendor-1",
	})

	alerts := store.alertsOfType(AlertSuspiciousPattern)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].Status != StatusOpen {
		t.Fatalf("new alert should be open, got %s", alerts[0].Status)
	}
	if notifier.count() != 0 {
		t.Fatal("low severity should not invoke the notification hook")
	}
}

func TestTriggerNotifiesHighSeveritySynchronously(t *testing.T) {
	store := newMemoryStore()
	notifier := &fakeNotifier{}
	engine := NewAlertEngine(store, notifier)

	engine.Trigger(context.Background(), SecurityAlert{
		AlertType:   AlertRateLimitExceeded,
		Severity:    SeverityHigh,
		RequestorID: "vendor-1",
	})

	// Trigger has returned; the hook must already have fired.
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}
}

func TestTriggerSwallowsNotifierFailure(t *testing.T) {
	store := newMemoryStore()
	notifier := &fakeNotifier{err: errors.New("pager down")}
	engine := NewAlertEngine(store, notifier)

	engine.Trigger(context.Background(), SecurityAlert{
		AlertType: AlertRateLimitExceeded,
		Severity:  SeverityCritical,
	})

	if len(store.alertsOfType(AlertRateLimitExceeded)) != 1 {
		t.Fatal("alert should persist even when notification delivery fails")
	}
}

func TestAlertLifecycleForward(t *testing.T) {
	store := newMemoryStore()
	engine := NewAlertEngine(store, nil)
	ctx := context.Background()

	engine.Trigger(ctx, SecurityAlert{AlertType: AlertAccessDenied, Severity: SeverityMedium})
	id := store.alertsOfType(AlertAccessDenied)[0].ID

	acked, err := engine.Acknowledge(ctx, id, "analyst-1")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != StatusAcknowledged || acked.AcknowledgedBy == nil || *acked.AcknowledgedBy != "analyst-1" {
		t.Fatalf("unexpected acknowledged alert: %+v", acked)
	}

	resolved, err := engine.Resolve(ctx, id, "analyst-1", "vendor key rotated")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.Resolution == nil || *resolved.Resolution != "vendor key rotated" {
		t.Fatalf("unexpected resolved alert: %+v", resolved)
	}
}

func TestAlertDirectFalsePositive(t *testing.T) {
	store := newMemoryStore()
	engine := NewAlertEngine(store, nil)
	ctx := context.Background()

	engine.Trigger(ctx, SecurityAlert{AlertType: AlertAccessDenied, Severity: SeverityMedium})
	id := store.alertsOfType(AlertAccessDenied)[0].ID

	alert, err := engine.MarkFalsePositive(ctx, id, "analyst-2", "load test traffic")
	if err != nil {
		t.Fatalf("false positive: %v", err)
	}
	if alert.Status != StatusFalsePositive {
		t.Fatalf("expected false_positive, got %s", alert.Status)
	}
	if alert.Resolution == nil || *alert.Resolution != "False positive: load test traffic" {
		t.Fatalf("unexpected resolution: %+v", alert.Resolution)
	}
}

func TestTerminalAlertsStayTerminal(t *testing.T) {
	store := newMemoryStore()
	engine := NewAlertEngine(store, nil)
	ctx := context.Background()

	engine.Trigger(ctx, SecurityAlert{AlertType: AlertAccessDenied, Severity: SeverityMedium})
	id := store.alertsOfType(AlertAccessDenied)[0].ID

	if _, err := engine.Resolve(ctx, id, "analyst-1", "done"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := engine.Acknowledge(ctx, id, "analyst-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition out of resolved, got %v", err)
	}
	if _, err := engine.Resolve(ctx, id, "analyst-1", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for double resolve, got %v", err)
	}
	if _, err := engine.MarkFalsePositive(ctx, id, "analyst-1", "nope"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition to false_positive from resolved, got %v", err)
	}
}

func TestAcknowledgeRequiresOpen(t *testing.T) {
	store := newMemoryStore()
	engine := NewAlertEngine(store, nil)
	ctx := context.Background()

	engine.Trigger(ctx, SecurityAlert{AlertType: AlertAccessDenied, Severity: SeverityMedium})
	id := store.alertsOfType(AlertAccessDenied)[0].ID

	if _, err := engine.Acknowledge(ctx, id, "analyst-1"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if _, err := engine.Acknowledge(ctx, id, "analyst-2"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for double acknowledge, got %v", err)
	}
}
