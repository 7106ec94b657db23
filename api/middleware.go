package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/models"
)

// basic credentials are re-checked against the database after this long
const credentialCacheTTL = 5 * time.Minute

var errInvalidCredentials = errors.New("invalid credentials")

// Claims is the body of an access token
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and checks access tokens
type Auth struct {
	Users  databases.UserDatabase
	Secret []byte
	TTL    time.Duration
	Clock  func() time.Time

	authenticator auth.Authenticator
}

// NewAuth sets up the go-guardian basic strategy used to exchange email and password
// for a signed token. The credential cache lives until ctx is done.
func NewAuth(ctx context.Context, users databases.UserDatabase, secret string, ttl time.Duration) *Auth {
	a := &Auth{
		Users:  users,
		Secret: []byte(secret),
		TTL:    ttl,
	}
	cache := store.NewFIFO(ctx, credentialCacheTTL)
	a.authenticator = auth.New()
	a.authenticator.EnableStrategy(basic.StrategyKey, basic.New(a.ValidateUser, cache))
	return a
}

func (a *Auth) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

// ValidateUser checks an email and password pair against the user database
func (a *Auth) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	user, err := a.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Details.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return auth.NewDefaultUser(user.Details.Email, user.ID.Hex(), []string{user.Details.Role}, nil), nil
}

// Sign returns a signed access token for id
func (a *Auth) Sign(id Identity) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.TTL)
	claims := Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseToken verifies an access token and returns the identity it carries
func (a *Auth) ParseToken(raw string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	return Identity{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ID        string    `json:"_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateToken exchanges basic credentials for an access token
func (a *Auth) CreateToken(w http.ResponseWriter, r *http.Request) {
	info, err := a.authenticator.Authenticate(r)
	if err != nil {
		zap.S().Debugw("token request rejected", "url", r.URL, "error", err)
		config.ErrorCodeStatus("invalid credentials", "unauthorized", http.StatusUnauthorized, w, err)
		return
	}
	role := models.UserRoleUser
	if groups := info.Groups(); len(groups) > 0 {
		role = groups[0]
	}
	id := Identity{ID: info.ID(), Email: info.UserName(), Role: role}
	token, exp, err := a.Sign(id)
	if err != nil {
		config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: token, ID: id.ID, Role: id.Role, ExpiresAt: exp})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// Middleware rejects requests without a valid bearer token and stores the caller's
// identity in the request context
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		raw, ok := bearerToken(r)
		if !ok {
			config.ErrorCodeStatus("unauthorized", "unauthorized", http.StatusUnauthorized, w, nil)
			return
		}
		id, err := a.ParseToken(raw)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL, "error", err)
			config.ErrorCodeStatus("unauthorized", "unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// AdminOnly must run after Middleware
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsAdmin() {
			config.ErrorCodeStatus("admin access required", "forbidden", http.StatusForbidden, w, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
