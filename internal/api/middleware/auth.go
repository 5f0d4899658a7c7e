package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Context keys set by Auth.
const (
	ContextSubject = "subject"
	ContextScopes  = "scopes"
)

// AuthConfig selects how bearer tokens are verified. JWKSURL takes
// precedence over Secret.
type AuthConfig struct {
	Secret   string
	JWKSURL  string
	Issuer   string
	Audience string
}

// Verifier parses and validates bearer tokens.
type Verifier struct {
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
	jwks    *keyfunc.JWKS
}

// NewVerifier builds a Verifier from cfg. With a JWKS URL the key set is
// fetched once and refreshed in the background until Close is called.
func NewVerifier(ctx context.Context, cfg AuthConfig, log zerolog.Logger) (*Verifier, error) {
	v := &Verifier{}

	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               ctx,
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Warn().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("jwks refresh failed")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("load jwks: %w", err)
		}
		v.jwks = jwks
		v.keyFunc = jwks.Keyfunc
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}))
	case cfg.Secret != "":
		v.keyFunc = hmacKeyFunc([]byte(cfg.Secret))
		v.opts = append(v.opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	default:
		return nil, errors.New("auth: a JWKS URL or a shared secret is required")
	}

	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// NewSecretVerifier returns a Verifier for HS256 tokens signed with secret.
func NewSecretVerifier(secret string) *Verifier {
	return &Verifier{
		keyFunc: hmacKeyFunc([]byte(secret)),
		opts:    []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})},
	}
}

func hmacKeyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}
}

// Close stops the background JWKS refresh, if any.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Parse validates raw and returns its claims.
func (v *Verifier) Parse(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, v.keyFunc, v.opts...)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// Auth validates the bearer token and injects its subject and scopes into context.
func Auth(v *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := v.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sub, _ := claims.GetSubject()
			c.Set(ContextSubject, sub)
			c.Set(ContextScopes, scopesOf(claims))

			return next(c)
		}
	}
}

// scopesOf reads the "scope" claim, which providers emit either as a
// space-separated string or as an array.
func scopesOf(claims jwt.MapClaims) []string {
	switch raw := claims["scope"].(type) {
	case string:
		return strings.Fields(raw)
	case []interface{}:
		out := make([]string, 0, len(raw))
		for _, s := range raw {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
