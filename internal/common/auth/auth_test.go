package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
)

// ==========================
// JWT
// ==========================

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret", "scholarship", "portal")
	token, err := v.Issue(&models.Principal{ID: "u1", DisplayName: "Asha", Email: "asha@example.com", PhoneNumber: "9876543210"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, &models.Principal{ID: "u1", DisplayName: "Asha", Email: "asha@example.com", PhoneNumber: "9876543210"}, p)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("secret", "scholarship", "portal")
	valid := &models.Principal{ID: "u1"}

	wrongSecret, _ := NewJWTVerifier("other", "scholarship", "portal").Issue(valid, time.Hour)
	wrongIssuer, _ := NewJWTVerifier("secret", "elsewhere", "portal").Issue(valid, time.Hour)
	wrongAudience, _ := NewJWTVerifier("secret", "scholarship", "admin").Issue(valid, time.Hour)
	expired, _ := v.Issue(valid, -time.Minute)
	noSubject, _ := v.Issue(&models.Principal{}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong secret":   wrongSecret,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"no subject":     noSubject,
		"alg none":       none,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := v.Verify(token)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &models.Principal{ID: "u1"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
}

// ==========================
// Keycloak
// ==========================

func newKeycloak(t *testing.T, userStatus int, userBody string) (*KeycloakClient, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/scholarship/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"svc-token","expires_in":300,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("/admin/realms/scholarship/users/u1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userStatus)
		_, _ = w.Write([]byte(userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewKeycloakClient(srv.URL+"/", "scholarship", "workers", "s3cret"), &tokenCalls
}

func TestKeycloakClient_EnrichFillsMissingContact(t *testing.T) {
	kc, tokenCalls := newKeycloak(t, http.StatusOK, `{
		"id": "u1", "email": "asha@example.com", "firstName": "Asha", "lastName": "Verma",
		"username": "asha", "enabled": true, "attributes": {"phoneNumber": ["9876543210"]}
	}`)

	p, err := kc.Enrich(context.Background(), &models.Principal{ID: "u1", DisplayName: "A. Verma"})
	require.NoError(t, err)
	assert.Equal(t, &models.Principal{ID: "u1", DisplayName: "A. Verma", Email: "asha@example.com", PhoneNumber: "9876543210"}, p)

	_, err = kc.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls), "service token is cached")
}

func TestKeycloakClient_EnrichCompletePrincipalSkipsLookup(t *testing.T) {
	kc, tokenCalls := newKeycloak(t, http.StatusOK, `{}`)
	in := &models.Principal{ID: "u1", DisplayName: "Asha", Email: "a@example.com", PhoneNumber: "9876543210"}

	p, err := kc.Enrich(context.Background(), in)

	require.NoError(t, err)
	assert.Same(t, in, p)
	assert.Equal(t, int32(0), atomic.LoadInt32(tokenCalls))
}

func TestKeycloakClient_GetUserErrors(t *testing.T) {
	t.Run("not found is permanent", func(t *testing.T) {
		kc, _ := newKeycloak(t, http.StatusNotFound, `{"error":"User not found"}`)
		_, err := kc.GetUser(context.Background(), "u1")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.False(t, stdErr.Retryable)
	})
	t.Run("server error is retryable", func(t *testing.T) {
		kc, _ := newKeycloak(t, http.StatusBadGateway, `upstream`)
		_, err := kc.GetUser(context.Background(), "u1")
		require.Error(t, err)
		stdErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.True(t, stdErr.Retryable)
	})
}

func TestUser_PrincipalFallsBackToUsername(t *testing.T) {
	u := &User{ID: "u2", Username: "ravi", Email: "ravi@example.com"}
	assert.Equal(t, &models.Principal{ID: "u2", DisplayName: "ravi", Email: "ravi@example.com"}, u.Principal())
}
