package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// Client checks identity-provider session validity. The OAuth
// handshake itself happens elsewhere; this adapter only asks the
// provider "is this opaque handle a live session, and whose?".
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ ports.IdentityVerifier = (*Client)(nil)

// NewClient creates an identity verifier with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration, baseLogger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        baseLogger.With().Str("component", "identity_client").Logger(),
	}
}

// Verify resolves an opaque session handle. An absent provider
// session is an expected outcome and returns (nil, nil); anything
// ambiguous fails closed as domain.ErrVerifierUnavailable.
func (c *Client) Verify(ctx context.Context, sessionHandle string) (*ports.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionHandle)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("Identity provider call failed")
		return nil, fmt.Errorf("%w: identity provider: %v", domain.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload struct {
			ID     string `json:"id"`
			Handle string `json:"username"`
			Token  string `json:"accessToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("%w: decode identity response: %v", domain.ErrVerifierUnavailable, err)
		}
		if payload.ID == "" || payload.Token == "" {
			return nil, fmt.Errorf("%w: identity response missing id or token", domain.ErrVerifierUnavailable)
		}
		return &ports.Identity{ID: payload.ID, Handle: payload.Handle, Token: payload.Token}, nil
	case http.StatusUnauthorized, http.StatusNotFound:
		// No provider session; expected, not an error.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: identity provider returned status %d", domain.ErrVerifierUnavailable, resp.StatusCode)
	}
}
