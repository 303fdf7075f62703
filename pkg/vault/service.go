package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Service composes the store, rate limiter, access logger and alert engine
// into the four public vault operations. Expected failures come back as
// tagged results; no expected failure mode escapes as a Go error.
type Service struct {
	store         Store
	limiter       *Limiter
	accessLog     *AccessLogger
	alerts        *AlertEngine
	bulkThreshold int
}

func NewService(store Store, limiter *Limiter, accessLog *AccessLogger, alerts *AlertEngine, bulkThreshold int) *Service {
	if bulkThreshold <= 0 {
		bulkThreshold = 100
	}
	return &Service{
		store:         store,
		limiter:       limiter,
		accessLog:     accessLog,
		alerts:        alerts,
		bulkThreshold: bulkThreshold,
	}
}

// Tokenize maps a real identifier to its token, creating the mapping on
// first sight. Idempotent per real identifier: repeat calls return the
// existing token without consuming rate-limit budget.
func (s *Service) Tokenize(ctx context.Context, input TokenizeInput, rc RequestorContext) TokenizeResult {
	start := time.Now()

	decision := s.limiter.Check(rc.RequestorID, rc.RequestorType, AccessTokenize)
	if !decision.Allowed {
		s.logAttempt(ctx, AccessTokenize, input.Token, rc, nil, false, CodeRateLimitExceeded, "tokenize rate limit exceeded", start)
		s.raiseRateLimitAlert(ctx, rc, AccessTokenize, SeverityMedium, decision)
		return TokenizeResult{ErrorCode: CodeRateLimitExceeded, Error: "tokenize rate limit exceeded"}
	}

	existing, err := s.store.GetMappingByRealIdentifier(ctx, input.RealIdentifier)
	if err == nil {
		s.logAttempt(ctx, AccessTokenize, existing.Token, rc, nil, true, "", "", start)
		return TokenizeResult{Success: true, Token: existing.Token, IsNew: false}
	}
	if !errors.Is(err, ErrNotFound) {
		s.logAttempt(ctx, AccessTokenize, input.Token, rc, nil, false, CodeInternalError, err.Error(), start)
		return TokenizeResult{ErrorCode: CodeInternalError, Error: "tokenize failed"}
	}

	mapping := TokenMapping{
		Token:          input.Token,
		RealIdentifier: input.RealIdentifier,
		IdentifierType: input.IdentifierType,
		UserRole:       input.UserRole,
		CreatedAt:      time.Now().UTC(),
	}
	if rc.RequestorID != "" {
		createdBy := rc.RequestorID
		mapping.CreatedBy = &createdBy
	}

	if err := s.store.CreateMapping(ctx, mapping); err != nil {
		s.logAttempt(ctx, AccessTokenize, input.Token, rc, nil, false, CodeInternalError, err.Error(), start)
		return TokenizeResult{ErrorCode: CodeInternalError, Error: "tokenize failed"}
	}

	s.limiter.Increment(rc.RequestorID, rc.RequestorType, AccessTokenize)
	s.logAttempt(ctx, AccessTokenize, input.Token, rc, nil, true, "", "", start)
	return TokenizeResult{Success: true, Token: input.Token, IsNew: true}
}

// Detokenize releases the real identifier behind a token. The justification
// is checked first: an invalid reason is rejected before the rate limiter is
// consulted and never consumes budget.
func (s *Service) Detokenize(ctx context.Context, token, reason string, rc RequestorContext) DetokenizeResult {
	start := time.Now()

	if !DetokenizationReasons[reason] {
		s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, false, CodeInvalidReason,
			fmt.Sprintf("invalid detokenization reason %q", reason), start)
		return DetokenizeResult{ErrorCode: CodeInvalidReason, Error: "invalid detokenization reason"}
	}

	decision := s.limiter.Check(rc.RequestorID, rc.RequestorType, AccessDetokenize)
	if !decision.Allowed {
		s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, false, CodeRateLimitExceeded, "detokenize rate limit exceeded", start)
		s.raiseRateLimitAlert(ctx, rc, AccessDetokenize, SeverityHigh, decision)
		return DetokenizeResult{ErrorCode: CodeRateLimitExceeded, Error: "detokenize rate limit exceeded"}
	}

	mapping, err := s.store.GetMappingByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, false, CodeNotFound, "token not found", start)
		return DetokenizeResult{ErrorCode: CodeNotFound, Error: "token not found"}
	}
	if err != nil {
		s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, false, CodeInternalError, err.Error(), start)
		return DetokenizeResult{ErrorCode: CodeInternalError, Error: "detokenize failed"}
	}

	if err := s.store.RecordMappingAccess(ctx, token, time.Now().UTC()); err != nil {
		s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, false, CodeInternalError, err.Error(), start)
		return DetokenizeResult{ErrorCode: CodeInternalError, Error: "detokenize failed"}
	}

	s.limiter.Increment(rc.RequestorID, rc.RequestorType, AccessDetokenize)
	s.logAttempt(ctx, AccessDetokenize, token, rc, &reason, true, "", "", start)
	return DetokenizeResult{Success: true, RealIdentifier: mapping.RealIdentifier}
}

// LookupByRealIdentifier probes whether an identifier is already tokenized.
// It never returns a real identifier and is not subject to the
// tokenize/detokenize budgets.
func (s *Service) LookupByRealIdentifier(ctx context.Context, realIdentifier string, rc RequestorContext) LookupResult {
	start := time.Now()

	mapping, err := s.store.GetMappingByRealIdentifier(ctx, realIdentifier)
	if errors.Is(err, ErrNotFound) {
		s.logAttempt(ctx, AccessLookup, "", rc, nil, true, "", "", start)
		return LookupResult{Success: true, Exists: false}
	}
	if err != nil {
		s.logAttempt(ctx, AccessLookup, "", rc, nil, false, CodeInternalError, err.Error(), start)
		return LookupResult{ErrorCode: CodeInternalError, Error: "lookup failed"}
	}

	s.logAttempt(ctx, AccessLookup, mapping.Token, rc, nil, true, "", "", start)
	return LookupResult{Success: true, Token: mapping.Token, Exists: true}
}

// BulkTokenize tokenizes a batch sequentially. Oversized batches raise a
// bulk alert before any item is processed. A rate-limit denial stops the
// batch; any other per-item failure does not.
func (s *Service) BulkTokenize(ctx context.Context, inputs []TokenizeInput, rc RequestorContext) BulkTokenizeResult {
	start := time.Now()

	alertTriggered := len(inputs) > s.bulkThreshold
	if alertTriggered {
		s.alerts.Trigger(ctx, SecurityAlert{
			AlertType:     AlertBulkDetokenizeAttempt,
			Severity:      SeverityMedium,
			RequestorID:   rc.RequestorID,
			RequestorType: rc.RequestorType,
			RequestorIP:   rc.RequestorIP,
			Description:   fmt.Sprintf("bulk tokenize of %d items exceeds threshold %d", len(inputs), s.bulkThreshold),
			Metadata: datatypes.JSONMap{
				"vendor_id":  rc.VendorID,
				"batch_size": len(inputs),
			},
			TriggerEvent:     AccessBulkTokenize,
			TriggerCount:     len(inputs),
			TriggerThreshold: s.bulkThreshold,
		})
	}

	results := make([]TokenizeResult, 0, len(inputs))
	for _, input := range inputs {
		res := s.Tokenize(ctx, input, rc)
		results = append(results, res)
		if !res.Success && res.ErrorCode == CodeRateLimitExceeded {
			break
		}
	}

	s.logAttempt(ctx, AccessBulkTokenize, "", rc, nil, true, "", "", start)
	return BulkTokenizeResult{Results: results, AlertTriggered: alertTriggered}
}

func (s *Service) raiseRateLimitAlert(ctx context.Context, rc RequestorContext, op, severity string, decision Decision) {
	s.alerts.Trigger(ctx, SecurityAlert{
		AlertType:     AlertRateLimitExceeded,
		Severity:      severity,
		RequestorID:   rc.RequestorID,
		RequestorType: rc.RequestorType,
		RequestorIP:   rc.RequestorIP,
		Description:   fmt.Sprintf("%s rate limit exceeded for %s", op, rc.RequestorID),
		Metadata: datatypes.JSONMap{
			"operation":  op,
			"limit":      decision.Limit,
			"window_end": decision.WindowEnd.Format(time.RFC3339),
		},
		TriggerEvent:     op,
		TriggerCount:     decision.Limit,
		TriggerThreshold: decision.Limit,
	})
}

func (s *Service) logAttempt(ctx context.Context, accessType, token string, rc RequestorContext, reason *string, success bool, code, message string, start time.Time) {
	entry := TokenAccessLog{
		Token:         token,
		AccessType:    accessType,
		RequestorID:   rc.RequestorID,
		RequestorType: rc.RequestorType,
		RequestorIP:   rc.RequestorIP,
		Reason:        reason,
		Success:       success,
		Timestamp:     time.Now().UTC(),
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if rc.VendorID != "" {
		vendorID := rc.VendorID
		entry.VendorID = &vendorID
	}
	if rc.ResourceContext != "" {
		resource := rc.ResourceContext
		entry.ResourceContext = &resource
	}
	if code != "" {
		entry.ErrorCode = &code
	}
	if message != "" {
		entry.ErrorMessage = &message
	}
	s.accessLog.Log(ctx, entry)
}
