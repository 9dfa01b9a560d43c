package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/ports"
)

const solanaSignatureWindow = 25

// SolanaClient confirms SOL transfers through the JSON-RPC endpoint.
// It scans recent signatures touching the destination account and
// looks for a successful transaction that also involves the claimed
// source address.
type SolanaClient struct {
	rpcURL      string
	destination string
	timeout     time.Duration
	httpClient  *http.Client
	log         zerolog.Logger
}

var _ ports.LedgerClient = (*SolanaClient)(nil)

// NewSolanaClient creates a Solana ledger verifier. The timeout bounds
// a whole confirmation scan, not each RPC call, so a slow endpoint
// cannot stretch the scan to window-size multiples of it.
func NewSolanaClient(rpcURL, destination string, timeout time.Duration, baseLogger *zerolog.Logger) *SolanaClient {
	return &SolanaClient{
		rpcURL:      rpcURL,
		destination: destination,
		timeout:     timeout,
		httpClient:  &http.Client{},
		log:         baseLogger.With().Str("component", "solana_client").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type signatureInfo struct {
	Signature string           `json:"signature"`
	Err       *json.RawMessage `json:"err"`
}

type transactionResult struct {
	Transaction struct {
		Message struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta struct {
		Err *json.RawMessage `json:"err"`
	} `json:"meta"`
}

// ConfirmTransfer returns nil only when a successful recent transfer
// from source to the configured destination is found. Any RPC
// trouble is domain.ErrVerifierUnavailable; a clean "not found" is a
// verification failure with Solana-specific text.
func (c *SolanaClient) ConfirmTransfer(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sigs []signatureInfo
	err := c.call(ctx, "getSignaturesForAddress",
		[]interface{}{c.destination, map[string]interface{}{"limit": solanaSignatureWindow}}, &sigs)
	if err != nil {
		return err
	}

	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		var tx transactionResult
		err := c.call(ctx, "getTransaction",
			[]interface{}{sig.Signature, map[string]interface{}{"encoding": "json"}}, &tx)
		if err != nil {
			return err
		}
		if tx.Meta.Err != nil {
			continue
		}
		for _, key := range tx.Transaction.Message.AccountKeys {
			if key == source {
				c.log.Info().Str("signature", sig.Signature).Msg("Solana transfer confirmed")
				return nil
			}
		}
	}

	return errors.New("no Solana transfer from your address was found; send the transfer and try again")
}

func (c *SolanaClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrVerifierUnavailable, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Msg("Solana RPC call failed")
		return fmt.Errorf("%w: %s: %v", domain.ErrVerifierUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", domain.ErrVerifierUnavailable, method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrVerifierUnavailable, method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: %s: %s", domain.ErrVerifierUnavailable, method, envelope.Error.Message)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", domain.ErrVerifierUnavailable, method, err)
	}
	return nil
}
