package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// Client introspects bearer credentials against the identity provider's
// user endpoint.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(baseURL, serviceKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.serviceKey != ""
}

func (c *Client) Introspect(ctx context.Context, token string) (domain.Identity, error) {
	if !c.Configured() {
		return domain.Identity{}, domain.WrapError(domain.ErrConfiguration, "identity introspect", errors.New("identity provider url or service key missing"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create introspect request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "identity introspect", fmt.Errorf("%w: %w", domain.ErrUpstream, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "identity introspect", fmt.Errorf("status %s", resp.Status))
	}

	var body struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "identity introspect", fmt.Errorf("decode user: %w", err))
	}
	if strings.TrimSpace(body.ID) == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "identity introspect", errors.New("user id missing"))
	}
	return domain.Identity{ID: body.ID, Email: body.Email}, nil
}
