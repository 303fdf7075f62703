package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
)

// Notifier is the external-notification hook for high and critical alerts
// (paging, Slack, SIEM). Invoked synchronously by Trigger before it returns.
type Notifier interface {
	Notify(ctx context.Context, alert SecurityAlert) error
}

// AlertEngine creates security alerts and walks them through their
// lifecycle. Creation is best-effort from the originating operation's point
// of view: the vault's availability takes precedence over alerting.
type AlertEngine struct {
	store    Store
	notifier Notifier
}

func NewAlertEngine(store Store, notifier Notifier) *AlertEngine {
	return &AlertEngine{store: store, notifier: notifier}
}

// Trigger persists a new open alert. High and critical severities invoke the
// notification hook synchronously. Failures are reported to the operational
// channel and never propagated to the originating vault operation.
func (e *AlertEngine) Trigger(ctx context.Context, alert SecurityAlert) {
	alert.ID = uuid.New()
	alert.Status = StatusOpen
	alert.CreatedAt = time.Now().UTC()

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		logger.Ops("alert_engine").WithError(err).WithFields(map[string]interface{}{
			"alert_type":   alert.AlertType,
			"requestor_id": alert.RequestorID,
		}).Error("failed to persist security alert")
		return
	}

	logger.WithFields(map[string]interface{}{
		"alert_id":     alert.ID,
		"alert_type":   alert.AlertType,
		"severity":     alert.Severity,
		"requestor_id": alert.RequestorID,
	}).Warn("security alert raised")

	if alert.Severity != SeverityHigh && alert.Severity != SeverityCritical {
		return
	}
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, alert); err != nil {
		logger.Ops("alert_engine").WithError(err).WithField("alert_id", alert.ID).
			Error("failed to deliver alert notification")
	}
}

// Acknowledge moves an open alert to acknowledged.
func (e *AlertEngine) Acknowledge(ctx context.Context, id uuid.UUID, by string) (SecurityAlert, error) {
	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return SecurityAlert{}, err
	}
	if alert.Status != StatusOpen {
		return SecurityAlert{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, StatusAcknowledged)
	}

	now := time.Now().UTC()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedBy = &by
	alert.AcknowledgedAt = &now

	if err := e.store.UpdateAlert(ctx, alert); err != nil {
		return SecurityAlert{}, err
	}
	return alert, nil
}

// Resolve closes an open or acknowledged alert with a resolution note.
func (e *AlertEngine) Resolve(ctx context.Context, id uuid.UUID, by, resolution string) (SecurityAlert, error) {
	return e.close(ctx, id, by, resolution, StatusResolved)
}

// MarkFalsePositive closes an open or acknowledged alert as a false positive.
func (e *AlertEngine) MarkFalsePositive(ctx context.Context, id uuid.UUID, by, note string) (SecurityAlert, error) {
	return e.close(ctx, id, by, "False positive: "+note, StatusFalsePositive)
}

func (e *AlertEngine) close(ctx context.Context, id uuid.UUID, by, resolution, target string) (SecurityAlert, error) {
	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return SecurityAlert{}, err
	}
	if alert.Status != StatusOpen && alert.Status != StatusAcknowledged {
		return SecurityAlert{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, target)
	}

	now := time.Now().UTC()
	alert.Status = target
	alert.ResolvedBy = &by
	alert.ResolvedAt = &now
	alert.Resolution = &resolution

	if err := e.store.UpdateAlert(ctx, alert); err != nil {
		return SecurityAlert{}, err
	}
	return alert, nil
}
