package vault

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Identifier and requestor classifications. These are closed sets; anything
// outside them is rejected at the HTTP boundary.
const (
	IdentifierSIS       = "sis_id"
	IdentifierState     = "state_id"
	IdentifierClever    = "clever_id"
	IdentifierClassLink = "classlink_id"
)

const (
	RoleStudent       = "student"
	RoleTeacher       = "teacher"
	RoleParent        = "parent"
	RoleAdministrator = "administrator"
)

const (
	RequestorVendor          = "vendor"
	RequestorInternalService = "internal_service"
	RequestorAdmin           = "admin"
	RequestorSyncJob         = "sync_job"
)

// Operation kinds as recorded in the access log.
const (
	AccessTokenize     = "tokenize"
	AccessDetokenize   = "detokenize"
	AccessLookup       = "lookup"
	AccessBulkTokenize = "bulk_tokenize"
)

// Error codes carried in operation results. Expected failures are values,
// not Go errors; callers branch on Success and ErrorCode.
const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInvalidReason     = "INVALID_REASON"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
)

// DetokenizationReasons is the closed set of justifications that unlock a
// real identifier. There is no way to add to it at runtime.
var DetokenizationReasons = map[string]bool{
	"sis_sync_reconciliation": true,
	"compliance_audit":        true,
	"data_subject_request":    true,
	"emergency_contact":       true,
	"legal_subpoena":          true,
	"security_investigation":  true,
}

// Alert classification.
const (
	AlertRateLimitExceeded     = "rate_limit_exceeded"
	AlertBulkDetokenizeAttempt = "bulk_detokenize_attempt"
	AlertSuspiciousPattern     = "suspicious_pattern"
	AlertAccessDenied          = "access_denied"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	StatusOpen          = "open"
	StatusAcknowledged  = "acknowledged"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusFalsePositive = "false_positive"
)

// TokenMapping is the bijection between an opaque token and a real
// identifier. Both columns are unique: a hash collision across different
// real identifiers surfaces as a constraint violation instead of silently
// overwriting a row.
type TokenMapping struct {
	Token          string `gorm:"primaryKey"`
	RealIdentifier string `gorm:"uniqueIndex"`
	IdentifierType string
	UserRole       string
	CreatedAt      time.Time
	CreatedBy      *string
	LastAccessedAt *time.Time
	AccessCount    int
}

func (TokenMapping) TableName() string {
	return "token_mappings"
}

// TokenAccessLog rows are append-only; nothing in the codebase updates them.
type TokenAccessLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Token           string    `gorm:"index"`
	AccessType      string
	RequestorID     string `gorm:"index"`
	RequestorType   string
	RequestorIP     string
	Reason          *string
	VendorID        *string
	ResourceContext *string
	Success         bool
	ErrorCode       *string
	ErrorMessage    *string
	Timestamp       time.Time `gorm:"index"`
	DurationMs      int64
}

func (TokenAccessLog) TableName() string {
	return "token_access_logs"
}

// RateLimitWindow is the durable snapshot of one requestor's counters for
// one wall-clock minute. A new row supersedes the old one at rollover.
type RateLimitWindow struct {
	RequestorID     string    `gorm:"primaryKey"`
	WindowStart     time.Time `gorm:"primaryKey"`
	WindowEnd       time.Time
	TokenizeCount   int
	DetokenizeCount int
}

func (RateLimitWindow) TableName() string {
	return "rate_limit_windows"
}

// RateLimitConfig is a durable per-requestor override of the class defaults.
type RateLimitConfig struct {
	RequestorID         string `gorm:"primaryKey"`
	TokenizePerMinute   int
	DetokenizePerMinute int
	UpdatedAt           time.Time
}

func (RateLimitConfig) TableName() string {
	return "rate_limit_configs"
}

type SecurityAlert struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	AlertType        string    `gorm:"index"`
	Severity         string
	RequestorID      string `gorm:"index"`
	RequestorType    string
	RequestorIP      string
	Description      string
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	TriggerEvent     string
	TriggerCount     int
	TriggerThreshold int
	Status           string `gorm:"index"`
	AcknowledgedBy   *string
	AcknowledgedAt   *time.Time
	ResolvedBy       *string
	ResolvedAt       *time.Time
	Resolution       *string
	CreatedAt        time.Time
}

func (SecurityAlert) TableName() string {
	return "security_alerts"
}

// RequestorContext attributes a vault call to a caller for rate limiting,
// auditing and alerting.
type RequestorContext struct {
	RequestorID     string
	RequestorType   string
	RequestorIP     string
	VendorID        string
	ResourceContext string
}

// TokenizeInput carries one identifier to protect. Token is generated by the
// caller (the HTTP layer uses pkg/token); the orchestrator stores it as-is.
type TokenizeInput struct {
	Token          string `json:"token"`
	RealIdentifier string `json:"realIdentifier"`
	IdentifierType string `json:"identifierType"`
	UserRole       string `json:"userRole"`
}

type TokenizeResult struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	IsNew     bool   `json:"isNew"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

type DetokenizeResult struct {
	Success        bool   `json:"success"`
	RealIdentifier string `json:"realIdentifier,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
	Error          string `json:"error,omitempty"`
}

type LookupResult struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Exists    bool   `json:"exists"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BulkTokenizeResult struct {
	Results        []TokenizeResult `json:"results"`
	AlertTriggered bool             `json:"alertTriggered"`
}
