package vault

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rosterbridge/vendor-portal/pkg/auth"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
	"github.com/rosterbridge/vendor-portal/pkg/token"
)

type contextKey string

const claimsContextKey contextKey = "requestor_claims"

type HTTPHandler struct {
	service     *Service
	alerts      *AlertEngine
	relayDomain string
	maxBody     int64
}

func NewHTTPHandler(service *Service, alerts *AlertEngine, relayDomain string, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, alerts: alerts, relayDomain: relayDomain, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/tokens", h.handleTokenize).Methods(http.MethodPost)
	router.HandleFunc("/tokens/bulk", h.handleBulkTokenize).Methods(http.MethodPost)
	router.HandleFunc("/tokens/detokenize", h.handleDetokenize).Methods(http.MethodPost)
	router.HandleFunc("/tokens/lookup", h.handleLookup).Methods(http.MethodPost)
	router.HandleFunc("/tokens/contact", h.handleContact).Methods(http.MethodPost)

	router.HandleFunc("/alerts", h.handleListAlerts).Methods(http.MethodGet)
	router.HandleFunc("/alerts/{id}/acknowledge", h.handleAcknowledge).Methods(http.MethodPost)
	router.HandleFunc("/alerts/{id}/resolve", h.handleResolve).Methods(http.MethodPost)
	router.HandleFunc("/alerts/{id}/false-positive", h.handleFalsePositive).Methods(http.MethodPost)
}

// RequestorMiddleware resolves the bearer token to requestor claims and
// stores them on the request context. Every vault route requires them.
func RequestorMiddleware(authenticator *auth.OIDCAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := r.Header.Get("Authorization")
			if strings.HasPrefix(bearer, "Bearer ") {
				bearer = bearer[len("Bearer "):]
			}

			claims, err := authenticator.ValidateToken(r.Context(), bearer)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *HTTPHandler) requestorContext(r *http.Request) (RequestorContext, bool) {
	claims, ok := r.Context().Value(claimsContextKey).(auth.RequestorClaims)
	if !ok {
		return RequestorContext{}, false
	}
	return RequestorContext{
		RequestorID:     claims.Subject,
		RequestorType:   claims.RequestorType,
		RequestorIP:     clientIP(r),
		VendorID:        claims.VendorID,
		ResourceContext: r.Header.Get("X-Resource-Context"),
	}, true
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var roleTokenTypes = map[string]token.Type{
	RoleStudent:       token.TypeStudent,
	RoleTeacher:       token.TypeTeacher,
	RoleParent:        token.TypeParent,
	RoleAdministrator: token.TypeAdmin,
}

// fillToken generates the token for an input that arrived without one. The
// seed is namespaced by role so the same raw identifier maps to different
// tokens across roles.
func fillToken(input *TokenizeInput) error {
	if input.Token != "" {
		if !token.IsValid(input.Token) {
			return errors.New("malformed token")
		}
		return nil
	}
	t, ok := roleTokenTypes[input.UserRole]
	if !ok {
		return errors.New("unknown user role")
	}
	input.Token = token.New(t, input.UserRole+"_"+input.RealIdentifier)
	return nil
}

func validTokenizeInput(input TokenizeInput) bool {
	switch input.IdentifierType {
	case IdentifierSIS, IdentifierState, IdentifierClever, IdentifierClassLink:
	default:
		return false
	}
	_, ok := roleTokenTypes[input.UserRole]
	return ok && input.RealIdentifier != ""
}

func (h *HTTPHandler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestorContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input TokenizeInput
	if !h.decode(w, r, &input) {
		return
	}
	if !validTokenizeInput(input) {
		http.Error(w, "invalid tokenize input", http.StatusBadRequest)
		return
	}
	if err := fillToken(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.service.Tokenize(r.Context(), input, rc)
	writeResult(w, result.Success, result.ErrorCode, result)
}

func (h *HTTPHandler) handleBulkTokenize(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestorContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Inputs []TokenizeInput `json:"inputs"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	for i := range req.Inputs {
		if !validTokenizeInput(req.Inputs[i]) {
			http.Error(w, "invalid tokenize input in batch", http.StatusBadRequest)
			return
		}
		if err := fillToken(&req.Inputs[i]); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	result := h.service.BulkTokenize(r.Context(), req.Inputs, rc)
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestorContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Token  string `json:"token"`
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result := h.service.Detokenize(r.Context(), req.Token, req.Reason, rc)
	writeResult(w, result.Success, result.ErrorCode, result)
}

func (h *HTTPHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.requestorContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		RealIdentifier string `json:"realIdentifier"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result := h.service.LookupByRealIdentifier(r.Context(), req.RealIdentifier, rc)
	writeResult(w, result.Success, result.ErrorCode, result)
}

// handleContact derives relay contact forms for an existing token. The forms
// are a pure function of the token string, so no mapping read is needed and
// no real contact information is ever involved.
func (h *HTTPHandler) handleContact(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requestorContext(r); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	typ, err := token.Parse(req.Token)
	if err != nil {
		http.Error(w, "malformed token", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email": token.Email(typ, req.Token, h.relayDomain),
		"phone": token.Phone(req.Token),
	})
}

func (h *HTTPHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	alerts, err := h.service.store.ListAlerts(r.Context(), status, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list alerts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *HTTPHandler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, body alertActionRequest) (SecurityAlert, error) {
		return h.alerts.Acknowledge(ctx, id, body.By)
	})
}

func (h *HTTPHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, body alertActionRequest) (SecurityAlert, error) {
		return h.alerts.Resolve(ctx, id, body.By, body.Resolution)
	})
}

func (h *HTTPHandler) handleFalsePositive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id uuid.UUID, body alertActionRequest) (SecurityAlert, error) {
		return h.alerts.MarkFalsePositive(ctx, id, body.By, body.Resolution)
	})
}

type alertActionRequest struct {
	By         string `json:"by"`
	Resolution string `json:"resolution"`
}

func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID, alertActionRequest) (SecurityAlert, error)) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid alert id", http.StatusBadRequest)
		return
	}

	var body alertActionRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.By == "" {
		http.Error(w, "actor required", http.StatusBadRequest)
		return
	}

	alert, err := apply(r.Context(), id, body)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "alert not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, ErrInvalidTransition) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to transition alert")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Log.WithError(err).Warn("invalid vault request payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, success bool, errorCode string, payload interface{}) {
	status := http.StatusOK
	if !success {
		switch errorCode {
		case CodeRateLimitExceeded:
			status = http.StatusTooManyRequests
		case CodeInvalidReason:
			status = http.StatusBadRequest
		case CodeNotFound:
			status = http.StatusNotFound
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
