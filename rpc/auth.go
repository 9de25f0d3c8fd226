package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"cookledger/crypto"
	"cookledger/observability/logging"
)

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

type contextKey string

const (
	contextKeyCaller    contextKey = "rpc.caller"
	contextKeyRoles     contextKey = "rpc.roles"
	contextKeyRequestID contextKey = "rpc.request_id"

	rolesClaim = "roles"
)

var (
	errAuthNotConfigured = errors.New("auth secret not configured")
	errMissingSubject    = errors.New("token subject missing")
)

// Claims is the token body issued to API callers. Subject carries the
// caller's bech32 address.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and resolves the caller.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret)), logger: logger}
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(secret, issuer string, subject crypto.Address, roles []string, ttl time.Duration) (string, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		return "", errAuthNotConfigured
	}
	if subject.IsZero() {
		return "", errMissingSubject
	}
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Middleware rejects requests without a valid token and stores the caller
// address in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeProblem(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.parseToken(tokenString)
		if err != nil {
			a.logger.WarnContext(r.Context(), "token validation failed",
				slog.String("reason", err.Error()),
				slog.String("request_id", RequestID(r.Context())))
			writeProblem(w, http.StatusUnauthorized, "invalid token")
			return
		}
		caller, err := crypto.DecodeAddress(claims.Subject)
		if err != nil {
			a.logger.WarnContext(r.Context(), "token subject rejected",
				logging.MaskField("subject", claims.Subject),
				slog.String("request_id", RequestID(r.Context())))
			writeProblem(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		ctx = context.WithValue(ctx, contextKeyRoles, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseToken(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, errAuthNotConfigured
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

// Caller returns the authenticated address stored by the auth middleware.
func Caller(ctx context.Context) (crypto.Address, bool) {
	addr, ok := ctx.Value(contextKeyCaller).(crypto.Address)
	return addr, ok && !addr.IsZero()
}

// Roles returns the roles claimed by the token. The ledger checks roles
// against state; these are informational.
func Roles(ctx context.Context) []string {
	roles, _ := ctx.Value(contextKeyRoles).([]string)
	return roles
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
