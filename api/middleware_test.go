package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/resolveit-api/databases/mocks"
	"github.com/linesmerrill/resolveit-api/models"
)

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestAuth(t *testing.T, users *mocks.UserDatabase) *Auth {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a := NewAuth(ctx, users, "test-secret", time.Hour)
	a.Clock = func() time.Time { return fixedNow }
	return a
}

func TestAuth_SignAndParse(t *testing.T) {
	a := newTestAuth(t, &mocks.UserDatabase{})

	token, exp, err := a.Sign(Identity{ID: "u1", Email: "a@example.com", Role: models.UserRoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour), exp)

	id, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Email: "a@example.com", Role: models.UserRoleAdmin}, id)
	assert.True(t, id.IsAdmin())
}

func TestAuth_ParseTokenRejects(t *testing.T) {
	a := newTestAuth(t, &mocks.UserDatabase{})
	good, _, err := a.Sign(Identity{ID: "u1", Role: models.UserRoleUser})
	require.NoError(t, err)

	other := newTestAuth(t, &mocks.UserDatabase{})
	other.Secret = []byte("another-secret")
	foreign, _, err := other.Sign(Identity{ID: "u1", Role: models.UserRoleAdmin})
	require.NoError(t, err)

	later := newTestAuth(t, &mocks.UserDatabase{})
	later.Clock = func() time.Time { return fixedNow.Add(2 * time.Hour) }

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: models.UserRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, _, err := a.Sign(Identity{Role: models.UserRoleAdmin})
	require.NoError(t, err)

	_, err = a.ParseToken(foreign)
	assert.Error(t, err, "signed with another secret")
	_, err = later.ParseToken(good)
	assert.Error(t, err, "expired")
	_, err = a.ParseToken(unsigned)
	assert.Error(t, err, "alg none")
	_, err = a.ParseToken(noSubject)
	assert.Error(t, err, "no subject")
	_, err = a.ParseToken("garbage")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := newTestAuth(t, &mocks.UserDatabase{})
	token, _, err := a.Sign(Identity{ID: "u1", Role: models.UserRoleUser})
	require.NoError(t, err)

	var seen Identity
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Identity{}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, "u1", seen.ID)
			} else {
				var body models.ErrorMessageResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "unauthorized", body.Response.Code)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		models.UserRoleAdmin:       http.StatusNoContent,
		models.UserRoleUser:        http.StatusForbidden,
		models.UserRolePanelMember: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cases", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{ID: "x", Role: role}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/cases", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: primitive.NewObjectID(), Details: models.UserDetails{
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         models.UserRoleAdmin,
	}}

	users := &mocks.UserDatabase{}
	users.On("FindByEmail", mock.Anything, "admin@example.com").Return(user, nil)
	users.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("mongo: no documents in result"))
	a := newTestAuth(t, users)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
	req.SetBasicAuth("admin@example.com", "correct horse")
	rr := httptest.NewRecorder()
	a.CreateToken(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, user.ID.Hex(), resp.ID)
	assert.Equal(t, models.UserRoleAdmin, resp.Role)
	id, err := a.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), id.ID)
	assert.Equal(t, models.UserRoleAdmin, id.Role)
}

func TestCreateTokenRejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: primitive.NewObjectID(), Details: models.UserDetails{
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.UserRoleUser,
	}}
	users := &mocks.UserDatabase{}
	users.On("FindByEmail", mock.Anything, "user@example.com").Return(user, nil)
	users.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("mongo: no documents in result"))
	a := newTestAuth(t, users)

	tests := []struct {
		name     string
		email    string
		password string
		basic    bool
	}{
		{"wrong password", "user@example.com", "battery staple", true},
		{"unknown email", "nobody@example.com", "correct horse", true},
		{"no credentials", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
			if tt.basic {
				req.SetBasicAuth(tt.email, tt.password)
			}
			rr := httptest.NewRecorder()
			a.CreateToken(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}
