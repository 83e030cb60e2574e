// Package auth verifies the Supabase access tokens sent as bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const defaultRole = "authenticated"

var (
	ErrInvalidPayload = errors.New("token has no subject")
	ErrInvalidToken   = errors.New("invalid token")
)

// Response messages for rejected requests.
const (
	MsgAuthRequired   = "Authentication required"
	MsgInvalidPayload = "Invalid token payload"
	MsgInvalidToken   = "Invalid or expired token"
)

// Identity is the caller extracted from a verified token.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Token  string
	// Claims is the verified payload as sent.
	Claims json.RawMessage
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier accepts HS256 tokens signed with secret. An empty audience
// skips the aud check.
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: audience}
}

func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, ErrInvalidPayload
	}

	role := c.Role
	if role == "" {
		role = defaultRole
	}
	return &Identity{
		UserID: c.Subject,
		Email:  c.Email,
		Role:   role,
		Token:  tokenStr,
		Claims: payload(tokenStr),
	}, nil
}

// payload returns the decoded middle segment of an already verified token.
func payload(tokenStr string) json.RawMessage {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil
	}
	b, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil || !json.Valid(b) {
		return nil
	}
	return b
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the identity in the request context.
func (v *Verifier) Middleware(onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				onError(w, http.StatusUnauthorized, MsgAuthRequired)
				return
			}
			id, err := v.Verify(tokenStr)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Token rejected")
				msg := MsgInvalidToken
				if errors.Is(err, ErrInvalidPayload) {
					msg = MsgInvalidPayload
				}
				onError(w, http.StatusUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
