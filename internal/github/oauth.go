// internal/github/oauth.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/model"
)

const (
	defaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	defaultTokenURL     = "https://github.com/login/oauth/access_token"
)

// OAuth performs the GitHub web-flow token calls: authorization-code
// exchange and the refresh-token grant. These two endpoints live outside
// the REST API surface covered by go-github.
type OAuth struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger

	// AuthorizeURL and TokenURL default to github.com and are overridable
	// in tests.
	AuthorizeURL string
	TokenURL     string
}

// NewOAuth creates an OAuth helper for the configured GitHub app.
func NewOAuth(clientID, clientSecret string, logger *slog.Logger) *OAuth {
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		AuthorizeURL: defaultAuthorizeURL,
		TokenURL:     defaultTokenURL,
	}
}

// AuthURL builds the authorization URL the user is redirected to, carrying
// the opaque state for callback validation.
func (o *OAuth) AuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", o.clientID)
	params.Set("state", state)
	return fmt.Sprintf("%s?%s", o.AuthorizeURL, params.Encode())
}

// ExchangeCode trades an authorization code for an access/refresh token pair.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (model.TokenPair, error) {
	params := url.Values{}
	params.Set("client_id", o.clientID)
	params.Set("client_secret", o.clientSecret)
	params.Set("code", code)
	return o.requestToken(ctx, params)
}

// RefreshToken exchanges a refresh token for a new token pair via the
// standard OAuth refresh grant.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	params := url.Values{}
	params.Set("client_id", o.clientID)
	params.Set("client_secret", o.clientSecret)
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)
	return o.requestToken(ctx, params)
}

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Error                 string `json:"error"`
	ErrorDescription      string `json:"error_description"`
}

func (o *OAuth) requestToken(ctx context.Context, params url.Values) (model.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return model.TokenPair{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return model.TokenPair{}, apperrors.NewIntegration("github oauth request failed", nil, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return model.TokenPair{}, apperrors.NewIntegration("github oauth response malformed", nil, err)
	}

	// GitHub reports OAuth errors in the body with a 200 status.
	if tr.Error != "" {
		return model.TokenPair{}, apperrors.NewIntegration("github oauth error", map[string]any{
			"error": tr.ErrorDescription,
		}, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return model.TokenPair{}, apperrors.NewIntegration("github oauth error", map[string]any{
			"status": resp.StatusCode,
		}, nil)
	}

	now := time.Now().UTC()
	pair := model.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
	}
	if tr.ExpiresIn > 0 {
		pair.AccessTokenExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.RefreshTokenExpiresIn > 0 {
		pair.RefreshTokenExpiresAt = now.Add(time.Duration(tr.RefreshTokenExpiresIn) * time.Second)
	}
	return pair, nil
}
