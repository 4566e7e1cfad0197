// Package solana is the payment-rail client. Incoming deposits are
// verified against the chain through plain JSON-RPC; outgoing transfers
// go through the payout-signer service, which holds the treasury key
// and is outside this codebase.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Typed verification failures; the escrow service maps these onto its
// error taxonomy.
var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrTransferMismatch = errors.New("transfer recipient or amount mismatch")
	ErrTransferNotFinal = errors.New("transfer not finalized")
)

const lamportsPerSol = 1_000_000_000

type Client struct {
	rpcURL          string
	payoutSignerURL string
	signerToken     string
	amountTolerance float64
	http            *http.Client
}

func NewClient(rpcURL, payoutSignerURL, signerToken string, timeout time.Duration, amountTolerance float64) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if amountTolerance == 0 {
		amountTolerance = 0.005
	}
	return &Client{
		rpcURL:          rpcURL,
		payoutSignerURL: payoutSignerURL,
		signerToken:     signerToken,
		amountTolerance: amountTolerance,
		http:            &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type getTransactionResult struct {
	Result *struct {
		Meta *struct {
			Err          interface{} `json:"err"`
			PreBalances  []uint64    `json:"preBalances"`
			PostBalances []uint64    `json:"postBalances"`
		} `json:"meta"`
		Transaction struct {
			Message struct {
				AccountKeys []string `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// VerifyIncomingTransfer checks that the referenced transaction landed
// the expected amount (within tolerance) on the recipient. Native SOL
// balances only; SPL token deposits are verified by the signer service
// before it acknowledges them.
func (c *Client) VerifyIncomingTransfer(ctx context.Context, signature, recipient string, amount float64, token string) error {
	params := []interface{}{
		signature,
		map[string]interface{}{"encoding": "json", "maxSupportedTransactionVersion": 0},
	}
	var out getTransactionResult
	if err := c.rpcCall(ctx, "getTransaction", params, &out); err != nil {
		return err
	}
	if out.Error != nil {
		return errors.Wrapf(ErrTransferNotFound, "rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil || out.Result.Meta == nil {
		return ErrTransferNotFound
	}
	if out.Result.Meta.Err != nil {
		return ErrTransferNotFinal
	}

	keys := out.Result.Transaction.Message.AccountKeys
	pre, post := out.Result.Meta.PreBalances, out.Result.Meta.PostBalances
	for i, key := range keys {
		if key != recipient || i >= len(pre) || i >= len(post) {
			continue
		}
		received := float64(int64(post[i])-int64(pre[i])) / lamportsPerSol
		if withinTolerance(received, amount, c.amountTolerance) {
			return nil
		}
		return errors.Wrapf(ErrTransferMismatch, "expected %f %s, recipient received %f", amount, token, received)
	}
	return errors.Wrap(ErrTransferMismatch, "recipient not in transaction accounts")
}

func withinTolerance(got, want, tolerance float64) bool {
	if want == 0 {
		return got == 0
	}
	return math.Abs(got-want)/want <= tolerance
}

type transferRequest struct {
	Destination string  `json:"destination"`
	Amount      float64 `json:"amount"`
	Token       string  `json:"token"`
}

type transferResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// SendTransfer asks the payout-signer service to move funds from the
// treasury. Returns the on-chain transaction signature.
func (c *Client) SendTransfer(ctx context.Context, destination string, amount float64, token string) (string, error) {
	jsonBody, _ := json.Marshal(transferRequest{Destination: destination, Amount: amount, Token: token})

	req, err := http.NewRequestWithContext(ctx, "POST", c.payoutSignerURL+"/v1/transfer", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", errors.Wrap(err, "build transfer request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.signerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call payout signer")
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("payout signer returned %d: %s", resp.StatusCode, string(body))
	}

	var out transferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrap(err, "decode payout signer response")
	}
	if out.Error != "" || out.Signature == "" {
		return "", errors.Errorf("payout signer rejected transfer: %s", out.Error)
	}
	return out.Signature, nil
}

func (c *Client) rpcCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return errors.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "rpc %s", method)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("rpc %s returned %d: %s", method, resp.StatusCode, string(body))
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decode rpc %s response", method)
}
