package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "scholarship-workers/internal/common/errors"
	apphttp "scholarship-workers/internal/common/http"
	"scholarship-workers/internal/models"
)

// KeycloakClient looks up applicant profiles through the Keycloak admin API
// using the client credentials flow.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *apphttp.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID         string              `json:"id,omitempty"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Username   string              `json:"username"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   apphttp.NewClient(30 * time.Second),
	}
}

// getAccessToken returns a cached service token, refreshing it 30 seconds
// before it expires.
func (k *KeycloakClient) getAccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	var tokenResp TokenResponse
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)
	if err := k.httpClient.PostForm(ctx, tokenURL, data, &tokenResp); err != nil {
		return "", fmt.Errorf("keycloak token request: %w", err)
	}

	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 30*time.Second)
	return k.accessToken, nil
}

// GetUser retrieves a user by their Keycloak ID.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	token, err := k.getAccessToken(ctx)
	if err != nil {
		return nil, &apperrors.StandardError{
			Code:      apperrors.ErrCodeAuthentication,
			Message:   "Failed to authenticate with Keycloak",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	var user User
	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.baseURL, k.realm, url.PathEscape(userID))
	if err := k.httpClient.GetJSON(ctx, userURL, token, &user); err != nil {
		var statusErr *apphttp.StatusError
		retryable := !errors.As(err, &statusErr) || statusErr.Transient()
		return nil, &apperrors.StandardError{
			Code:      apperrors.ErrCodeQueryExecutionFailed,
			Message:   "Keycloak user lookup failed",
			Details:   err.Error(),
			Retryable: retryable,
			Timestamp: time.Now().UTC(),
		}
	}
	return &user, nil
}

// Principal converts a Keycloak user to the identity used by the backend.
func (u *User) Principal() *models.Principal {
	p := &models.Principal{
		ID:          u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:       u.Email,
	}
	if phones := u.Attributes["phoneNumber"]; len(phones) > 0 {
		p.PhoneNumber = phones[0]
	}
	if p.DisplayName == "" {
		p.DisplayName = u.Username
	}
	return p
}

// Enrich fills contact details missing from p with the Keycloak profile.
// p is returned unchanged when it is already complete.
func (k *KeycloakClient) Enrich(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if p.Email != "" && p.PhoneNumber != "" && p.DisplayName != "" {
		return p, nil
	}
	user, err := k.GetUser(ctx, p.ID)
	if err != nil {
		return p, err
	}
	profile := user.Principal()
	out := *p
	if out.Email == "" {
		out.Email = profile.Email
	}
	if out.PhoneNumber == "" {
		out.PhoneNumber = profile.PhoneNumber
	}
	if out.DisplayName == "" {
		out.DisplayName = profile.DisplayName
	}
	return &out, nil
}
