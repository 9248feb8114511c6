package inspirehub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the backend puts in its access tokens.
type Claims struct {
	// UserID is the subject id; older backends only set this one.
	UserID string `json:"_id,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id carried by the token.
func (c *Claims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Claims decodes the access token without verifying its signature.
// The client never schedules refreshes from these values; expiry is
// discovered when the backend answers 401.
func (c *Credential) Claims() (*Claims, error) {
	if c == nil || c.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	return parseClaims(c.AccessToken)
}

func parseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("unable to parse token: %w", err)
	}

	return claims, nil
}

// RefreshTokenRequest is the body of POST /auth/refresh-token.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// RefreshTokenResponse is the answer to a successful refresh.
type RefreshTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresher exchanges a refresh token for a new access token.
// Any error ends the session; [ErrRefreshRejected] marks a refusal by
// the backend as opposed to a transport failure.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

type refresherFunc func(ctx context.Context, refreshToken string) (string, error)

func (f refresherFunc) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return f(ctx, refreshToken)
}

// refreshAccessToken calls the refresh endpoint directly, bypassing the
// gateway so a rejected refresh can never trigger another renewal.
func (c *Client) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	req, err := c.newRequest(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh-token",
		Body:   RefreshTokenRequest{Token: refreshToken},
	}, "")
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", fmt.Errorf("%w: %w", ErrRefreshRejected, apiErr)
		}
		return "", apiErr
	}

	var out RefreshTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.Join(ErrRefreshRejected, errors.New("refresh response has no access token"))
	}

	return out.AccessToken, nil
}
