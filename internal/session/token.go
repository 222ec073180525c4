package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/storefront-sync/internal/domain"
)

// CookieName is the session cookie set for browsers.
const CookieName = "storefront_session"

// Claims is the session token payload.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Guest  bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// Resolver maps request credentials to a SessionState.
type Resolver struct {
	secret []byte
	issuer string
}

// NewResolver creates a resolver verifying HMAC tokens signed with secret.
// An empty issuer disables the issuer check.
func NewResolver(secret []byte, issuer string) *Resolver {
	return &Resolver{secret: secret, issuer: issuer}
}

// TokenFromRequest returns the bearer token or session cookie value.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Resolve returns the state for r and the raw token. Missing or invalid
// credentials resolve to the anonymous state.
func (res *Resolver) Resolve(r *http.Request) (domain.SessionState, string) {
	token := TokenFromRequest(r)
	if token == "" {
		return domain.SessionState{}, ""
	}
	state, err := res.Parse(token)
	if err != nil {
		return domain.SessionState{}, ""
	}
	return state, token
}

// Parse verifies token and maps its claims.
func (res *Resolver) Parse(token string) (domain.SessionState, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if res.issuer != "" {
		opts = append(opts, jwt.WithIssuer(res.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return res.secret, nil
	}, opts...)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("parse session token: %w", err)
	}
	if !parsed.Valid {
		return domain.SessionState{}, errors.New("session token is not valid")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return domain.SessionState{}, errors.New("session token has no subject")
	}
	return domain.SessionState{UserID: userID, Authenticated: true, IsGuest: claims.Guest}, nil
}

// Issuer signs session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an HS256 token issuer.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for userID.
func (i *Issuer) Issue(userID string, guest bool) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: userID,
		Guest:  guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// IssueGuest signs a token for a fresh guest identity.
func (i *Issuer) IssueGuest() (string, string, time.Time, error) {
	id := "guest-" + uuid.NewString()
	token, exp, err := i.Issue(id, true)
	return token, id, exp, err
}
