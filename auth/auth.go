// Package auth guards gateway operations with pluggable authorization.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/whiteheaddmark/Observatory-Databases/adapter"
	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// Authorizer decides whether a request may execute an operation against a
// resource. Implementations classify refusals as Unauthorized (no usable
// credentials) or Forbidden (valid credentials, insufficient scope).
type Authorizer interface {
	Authorize(r *http.Request, resource string, op adapter.Operation) error
}

// Passthrough admits every request. Used when the gateway fronts sources
// inside a trusted network segment.
type Passthrough struct{}

// Authorize always succeeds
func (Passthrough) Authorize(*http.Request, string, adapter.Operation) error {
	return nil
}

// JWTConfig configures bearer-token authorization
type JWTConfig struct {
	// Secret is the HMAC signing secret.
	Secret string `json:"secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `json:"issuer,omitempty"`
}

// Validate checks the configuration
func (c JWTConfig) Validate() error {
	if c.Secret == "" {
		return errors.Wrap(errors.ErrMissingConfig, errors.KindInternal,
			"auth", "Validate", "jwt secret is required")
	}
	return nil
}

// claims carries the scope list alongside the registered claims
type claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// JWT authorizes requests by validating an HMAC-signed bearer token and
// checking its scopes. Scopes follow the <resource>:read / <resource>:write
// convention; fetch requires read, every mutating operation requires write.
type JWT struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWT creates a bearer-token authorizer
func NewJWT(cfg JWTConfig) (*JWT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWT{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

// RequiredScope returns the scope an operation on a resource demands
func RequiredScope(resource string, op adapter.Operation) string {
	if op.Mutating() {
		return resource + ":write"
	}
	return resource + ":read"
}

// Authorize validates the bearer token and checks its scopes cover the
// operation. A missing or invalid token is Unauthorized; a valid token
// without the required scope is Forbidden.
func (j *JWT) Authorize(r *http.Request, resource string, op adapter.Operation) error {
	raw, err := bearerToken(r)
	if err != nil {
		return err
	}

	var c claims
	if _, err := j.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}); err != nil {
		return errors.Wrap(err, errors.KindUnauthorized, "auth", "Authorize", "token validation")
	}

	required := RequiredScope(resource, op)
	for _, scope := range c.Scopes {
		if scope == required {
			return nil
		}
	}

	return errors.New(errors.KindForbidden, "auth", "Authorize",
		fmt.Sprintf("token lacks scope %q", required))
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New(errors.KindUnauthorized, "auth", "bearerToken",
			"missing Authorization header")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New(errors.KindUnauthorized, "auth", "bearerToken",
			"Authorization header is not a bearer token")
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
