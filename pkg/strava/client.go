// Package strava is the client for the upstream fitness platform: OAuth
// code exchange, token refresh, activity detail fetch and activity update.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aceriverson/titlesv2/pkg/errs"
)

const defaultBaseURL = "https://www.strava.com"

// maxErrorBodySize caps the upstream body copied into error messages.
const maxErrorBodySize = 500

// APIError is a non-2xx response from Strava, carrying the status and a
// truncated body. It matches errors.Is(err, errs.ErrUpstream).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("strava: %s (status %d): %s", http.StatusText(e.StatusCode), e.StatusCode, e.Body)
	}
	return fmt.Sprintf("strava: %s (status %d)", http.StatusText(e.StatusCode), e.StatusCode)
}

func (e *APIError) Unwrap() error { return errs.ErrUpstream }

// TokenResponse is the payload of both the code-exchange and token-refresh
// endpoints. ExpiresAt is seconds since epoch. Athlete is only present on
// the initial exchange.
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	Athlete      json.RawMessage `json:"athlete,omitempty"`
}

// Activity is the subset of Strava's activity detail the pipeline needs.
type Activity struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SportType string `json:"sport_type"`
	Map       struct {
		Polyline        string `json:"polyline"`
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

// Path returns the best available encoded polyline, or "" when the
// activity has no GPS track.
func (a *Activity) Path() string {
	if a.Map.Polyline != "" {
		return a.Map.Polyline
	}
	return a.Map.SummaryPolyline
}

// Client talks to the Strava v3 API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client
	oauth        *oauth2.Config
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
		c.oauth.Endpoint = oauth2.Endpoint{
			AuthURL:  c.baseURL + "/oauth/authorize",
			TokenURL: c.baseURL + "/oauth/token",
		}
	}
}

// WithHTTPClient injects an HTTP client (for tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Strava API client. Every outbound call is bounded by
// the client timeout.
func NewClient(clientID, clientSecret, redirectURL string, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"activity:write,activity:read_all"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  defaultBaseURL + "/oauth/authorize",
				TokenURL: defaultBaseURL + "/oauth/token",
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL is the login redirect target.
func (c *Client) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("", oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// ExchangeCode trades an authorization code for a token pair plus the
// athlete blob Strava attaches to the exchange response.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", errs.ErrUpstream, err)
	}

	out := &TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.Unix(),
	}
	if raw, ok := tok.Extra("expires_at").(float64); ok {
		out.ExpiresAt = int64(raw)
	}
	if athlete := tok.Extra("athlete"); athlete != nil {
		blob, err := json.Marshal(athlete)
		if err != nil {
			return nil, fmt.Errorf("marshal athlete blob: %w", err)
		}
		out.Athlete = blob
	}
	return out, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	return &out, nil
}

// Activity fetches one activity's detail with the given bearer token.
func (c *Client) Activity(ctx context.Context, accessToken string, id int64) (*Activity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/activities/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activity fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var out Activity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &out, nil
}

// UpdateActivity renames an activity, optionally setting a description.
func (c *Client) UpdateActivity(ctx context.Context, accessToken string, id int64, name, description string) error {
	payload := map[string]string{"name": name}
	if description != "" {
		payload["description"] = description
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/api/v3/activities/%d", c.baseURL, id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("activity update failed: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

// checkResponse converts a 4xx/5xx response into an APIError with a
// truncated body.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize+1))
	body := string(bodyBytes)
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize] + "..."
	}
	return &APIError{StatusCode: resp.StatusCode, Body: body}
}
