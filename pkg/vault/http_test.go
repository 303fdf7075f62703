package vault

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rosterbridge/vendor-portal/pkg/auth"
	"github.com/rosterbridge/vendor-portal/pkg/token"
)

func newTestRouter(t *testing.T) (*mux.Router, *memoryStore) {
	t.Helper()

	service, store, _ := newTestVault(nil)
	authenticator, err := auth.NewOIDCAuthenticator("https://issuer.test", "client-id", "secret")
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1/vault").Subrouter()
	api.Use(RequestorMiddleware(authenticator))
	NewHTTPHandler(service, service.alerts, "rosterbridge.io", 1<<20).Register(api)
	return router, store
}

func doJSON(t *testing.T, router *mux.Router, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPTokenizeGeneratesToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens", "vendor:vendor-1:acme",
		`{"realIdentifier":"sis-42","identifierType":"sis_id","userRole":"student"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result TokenizeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || !result.IsNew {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !token.IsValidTyped(result.Token, token.TypeStudent) {
		t.Fatalf("generated token %q is not a valid student token", result.Token)
	}
}

func TestHTTPRequiresBearer(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens", "",
		`{"realIdentifier":"sis-42","identifierType":"sis_id","userRole":"student"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHTTPDetokenizeStatusMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens/detokenize", "vendor:vendor-1:acme",
		`{"token":"TKN_STU_00000001","reason":"curiosity"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid reason should map to 400, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens/detokenize", "vendor:vendor-1:acme",
		`{"token":"TKN_STU_00000001","reason":"compliance_audit"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token should map to 404, got %d", rec.Code)
	}
}

func TestHTTPContactForms(t *testing.T) {
	router, _ := newTestRouter(t)

	stu := token.Student("lincoln-high", 0)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens/contact", "vendor:vendor-1:acme",
		`{"token":"`+stu+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var forms map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &forms); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !token.IsValidEmail(forms["email"]) {
		t.Fatalf("relay email %q fails grammar check", forms["email"])
	}
	if !token.IsValidPhone(forms["phone"]) {
		t.Fatalf("relay phone %q fails grammar check", forms["phone"])
	}
}

func TestHTTPRejectsInvalidInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/vault/tokens", "vendor:vendor-1:acme",
		`{"realIdentifier":"sis-42","identifierType":"passport","userRole":"student"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown identifier type should map to 400, got %d", rec.Code)
	}
}
