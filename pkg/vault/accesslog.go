package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
)

// OpsPublisher carries operational events (audit/alerting failures) off the
// request path. *kafka.Producer satisfies it.
type OpsPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// AccessLogger writes the append-only audit trail. Exactly one entry is
// written per vault operation attempt; a failed write is reported on the
// operational channel and swallowed, because audit unavailability must not
// take the vault down with it.
type AccessLogger struct {
	store Store
	ops   OpsPublisher
}

func NewAccessLogger(store Store, ops OpsPublisher) *AccessLogger {
	return &AccessLogger{store: store, ops: ops}
}

func (l *AccessLogger) Log(ctx context.Context, entry TokenAccessLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := l.store.InsertAccessLog(ctx, entry); err != nil {
		logger.Ops("access_logger").WithError(err).WithFields(map[string]interface{}{
			"token":        entry.Token,
			"access_type":  entry.AccessType,
			"requestor_id": entry.RequestorID,
		}).Error("failed to write access log entry")

		if l.ops != nil {
			_ = l.ops.PublishEvent(ctx, "access_log_write_failed", "vault-service", map[string]interface{}{
				"token":        entry.Token,
				"access_type":  entry.AccessType,
				"requestor_id": entry.RequestorID,
				"error":        err.Error(),
			})
		}
	}
}
