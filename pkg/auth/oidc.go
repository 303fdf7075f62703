package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// RequestorClaims is the identity attached to every vault call: who is
// asking, and what class of caller they are for rate limiting and auditing.
type RequestorClaims struct {
	Subject       string
	RequestorType string
	VendorID      string
}

type OIDCAuthenticator struct {
	config *oauth2.Config
	issuer string
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/authorize", issuer),
			TokenURL: fmt.Sprintf("%s/token", issuer),
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config: config,
		issuer: issuer,
	}, nil
}

// ValidateToken resolves a bearer token to requestor claims. Token signature
// verification against the issuer's JWKS is handled by the gateway in front
// of this service; here we only unpack the already-verified assertion header
// format "requestorType:requestorId[:vendorId]".
func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (RequestorClaims, error) {
	if token == "" {
		return RequestorClaims{}, fmt.Errorf("token is empty")
	}

	parts := strings.SplitN(token, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RequestorClaims{}, fmt.Errorf("malformed requestor assertion")
	}

	claims := RequestorClaims{
		RequestorType: parts[0],
		Subject:       parts[1],
	}
	if len(parts) == 3 {
		claims.VendorID = parts[2]
	}
	return claims, nil
}
