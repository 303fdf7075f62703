package vault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid alert transition")
)

// Store is the vault's persistence capability. The orchestrator, rate
// limiter, access logger and alert engine all go through it, so tests can
// substitute an in-memory implementation and production wires the Postgres
// repository on the isolated vault connection.
type Store interface {
	GetMappingByToken(ctx context.Context, token string) (TokenMapping, error)
	GetMappingByRealIdentifier(ctx context.Context, realIdentifier string) (TokenMapping, error)
	CreateMapping(ctx context.Context, mapping TokenMapping) error
	RecordMappingAccess(ctx context.Context, token string, at time.Time) error

	InsertAccessLog(ctx context.Context, entry TokenAccessLog) error

	SaveRateLimitWindow(ctx context.Context, window RateLimitWindow) error
	ListRateLimitConfigs(ctx context.Context) ([]RateLimitConfig, error)

	CreateAlert(ctx context.Context, alert SecurityAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (SecurityAlert, error)
	UpdateAlert(ctx context.Context, alert SecurityAlert) error
	ListAlerts(ctx context.Context, status string, limit int) ([]SecurityAlert, error)
}
