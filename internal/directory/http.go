package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to the directory service over its JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client of the directory service at baseURL.
//
// Precondition: baseURL must not have a trailing slash; timeout must be > 0.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetAccount implements Directory.
func (c *HTTPClient) GetAccount(ctx context.Context, userToken string) (Account, error) {
	endpoint := fmt.Sprintf("%s/api/session/account?token=%s", c.baseURL, url.QueryEscape(userToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Account{}, fmt.Errorf("building account request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("resolving account: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Account{}, ErrUnknownUser
	default:
		return Account{}, fmt.Errorf("resolving account: directory returned %s", resp.Status)
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return Account{}, fmt.Errorf("decoding account response: %w", err)
	}
	return account, nil
}

// CheckGamePermission implements Directory.
func (c *HTTPClient) CheckGamePermission(ctx context.Context, userToken, gameToken string) (Role, error) {
	endpoint := fmt.Sprintf("%s/api/session/permission?user=%s&game=%s",
		c.baseURL, url.QueryEscape(userToken), url.QueryEscape(gameToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RoleNone, fmt.Errorf("building permission request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return RoleNone, fmt.Errorf("checking game permission: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return RoleNone, ErrUnknownGame
	default:
		return RoleNone, fmt.Errorf("checking game permission: directory returned %s", resp.Status)
	}

	var body struct {
		Role Role `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RoleNone, fmt.Errorf("decoding permission response: %w", err)
	}
	switch body.Role {
	case RoleHost, RolePlayer, RoleNone:
		return body.Role, nil
	default:
		return RoleNone, fmt.Errorf("directory returned unknown role %q", body.Role)
	}
}
