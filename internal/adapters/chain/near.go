package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

// NearClient confirms NEAR transfers through an indexer API: recent
// transactions received by the destination account, filtered by
// predecessor.
type NearClient struct {
	indexerURL  string
	destination string
	httpClient  *http.Client
	log         zerolog.Logger
}

var _ ports.LedgerClient = (*NearClient)(nil)

// NewNearClient creates a NEAR ledger verifier with a bounded
// per-call timeout.
func NewNearClient(indexerURL, destination string, timeout time.Duration, baseLogger *zerolog.Logger) *NearClient {
	return &NearClient{
		indexerURL:  indexerURL,
		destination: destination,
		httpClient:  &http.Client{Timeout: timeout},
		log:         baseLogger.With().Str("component", "near_client").Logger(),
	}
}

type nearTxn struct {
	PredecessorAccountID string `json:"predecessor_account_id"`
	ReceiverAccountID    string `json:"receiver_account_id"`
	Outcomes             struct {
		Status bool `json:"status"`
	} `json:"outcomes"`
}

// ConfirmTransfer returns nil only when a successful recent transfer
// from source to the configured destination is found on the NEAR
// side. Indexer trouble is domain.ErrVerifierUnavailable.
func (c *NearClient) ConfirmTransfer(ctx context.Context, source string) error {
	endpoint := fmt.Sprintf("%s/v1/account/%s/txns?from=%s&per_page=25",
		c.indexerURL, url.PathEscape(c.destination), url.QueryEscape(source))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("NEAR indexer call failed")
		return fmt.Errorf("%w: near indexer: %v", domain.ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: near indexer returned status %d", domain.ErrVerifierUnavailable, resp.StatusCode)
	}

	var payload struct {
		Txns []nearTxn `json:"txns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("%w: decode near indexer response: %v", domain.ErrVerifierUnavailable, err)
	}

	for _, txn := range payload.Txns {
		if txn.PredecessorAccountID == source && txn.ReceiverAccountID == c.destination && txn.Outcomes.Status {
			c.log.Info().Str("source", source).Msg("NEAR transfer confirmed")
			return nil
		}
	}

	return errors.New("no NEAR transfer from your address was found; send the transfer and try again")
}
