package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is the in-process Store used by the package tests. It is
// mutex-guarded because the limiter persists windows from goroutines.
type memoryStore struct {
	mu sync.Mutex

	mappingsByToken map[string]TokenMapping
	mappingsByReal  map[string]TokenMapping
	logs            []TokenAccessLog
	windows         map[string]RateLimitWindow
	configs         []RateLimitConfig
	alerts          map[uuid.UUID]SecurityAlert
	alertOrder      []uuid.UUID

	failLogs      bool
	failCreateFor map[string]bool // real identifiers whose mapping insert fails
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		mappingsByToken: make(map[string]TokenMapping),
		mappingsByReal:  make(map[string]TokenMapping),
		windows:         make(map[string]RateLimitWindow),
		alerts:          make(map[uuid.UUID]SecurityAlert),
		failCreateFor:   make(map[string]bool),
	}
}

func (m *memoryStore) GetMappingByToken(ctx context.Context, token string) (TokenMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappingsByToken[token]
	if !ok {
		return TokenMapping{}, ErrNotFound
	}
	return mapping, nil
}

func (m *memoryStore) GetMappingByRealIdentifier(ctx context.Context, realIdentifier string) (TokenMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappingsByReal[realIdentifier]
	if !ok {
		return TokenMapping{}, ErrNotFound
	}
	return mapping, nil
}

func (m *memoryStore) CreateMapping(ctx context.Context, mapping TokenMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateFor[mapping.RealIdentifier] {
		return errors.New("simulated storage failure")
	}
	if _, exists := m.mappingsByToken[mapping.Token]; exists {
		return errors.New("duplicate token")
	}
	if _, exists := m.mappingsByReal[mapping.RealIdentifier]; exists {
		return errors.New("duplicate real identifier")
	}
	m.mappingsByToken[mapping.Token] = mapping
	m.mappingsByReal[mapping.RealIdentifier] = mapping
	return nil
}

func (m *memoryStore) RecordMappingAccess(ctx context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappingsByToken[token]
	if !ok {
		return ErrNotFound
	}
	mapping.LastAccessedAt = &at
	mapping.AccessCount++
	m.mappingsByToken[token] = mapping
	m.mappingsByReal[mapping.RealIdentifier] = mapping
	return nil
}

func (m *memoryStore) InsertAccessLog(ctx context.Context, entry TokenAccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLogs {
		return errors.New("simulated log failure")
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memoryStore) SaveRateLimitWindow(ctx context.Context, window RateLimitWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d", window.RequestorID, window.WindowStart.Unix())
	m.windows[key] = window
	return nil
}

func (m *memoryStore) ListRateLimitConfigs(ctx context.Context) ([]RateLimitConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RateLimitConfig(nil), m.configs...), nil
}

func (m *memoryStore) CreateAlert(ctx context.Context, alert SecurityAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alert.ID] = alert
	m.alertOrder = append(m.alertOrder, alert.ID)
	return nil
}

func (m *memoryStore) GetAlert(ctx context.Context, id uuid.UUID) (SecurityAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return SecurityAlert{}, ErrNotFound
	}
	return alert, nil
}

func (m *memoryStore) UpdateAlert(ctx context.Context, alert SecurityAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[alert.ID]; !ok {
		return ErrNotFound
	}
	m.alerts[alert.ID] = alert
	return nil
}

func (m *memoryStore) ListAlerts(ctx context.Context, status string, limit int) ([]SecurityAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SecurityAlert
	for _, id := range m.alertOrder {
		alert := m.alerts[id]
		if status != "" && alert.Status != status {
			continue
		}
		out = append(out, alert)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func (m *memoryStore) lastLog() TokenAccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[len(m.logs)-1]
}

func (m *memoryStore) alertsOfType(alertType string) []SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SecurityAlert
	for _, id := range m.alertOrder {
		if m.alerts[id].AlertType == alertType {
			out = append(out, m.alerts[id])
		}
	}
	return out
}
