package flutterwave

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	xerrors "referral-service/internal/xerrors"
)

// Client covers the card-payment side: webhook signature checks and
// verification of a transaction by its reference.
type Client struct {
	BaseURL    string
	SecretKey  string
	SecretHash string
	HttpClient *http.Client
}

func NewClient(baseURL, secretKey, secretHash string) *Client {
	if baseURL == "" {
		baseURL = "https://api.flutterwave.com"
	}
	return &Client{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		SecretHash: secretHash,
		HttpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// HashConfigured reports whether webhook signatures can be checked at all.
func (c *Client) HashConfigured() bool {
	return c.SecretHash != ""
}

// VerifySignature checks the verif-hash header value against
// hex(sha256(rawBody + secretHash)).
func (c *Client) VerifySignature(rawBody []byte, signature string) bool {
	if c.SecretHash == "" || signature == "" {
		return false
	}
	sum := sha256.Sum256(append(append([]byte{}, rawBody...), []byte(c.SecretHash)...))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Transaction is the verified gateway view of a payment.
type Transaction struct {
	TxRef    string      `json:"tx_ref"`
	Status   string      `json:"status"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// VerifyTransaction resolves a payment by its tx_ref when the webhook
// outcome needs double-checking.
func (c *Client) VerifyTransaction(ctx context.Context, txRef string) (*Transaction, error) {
	if c.SecretKey == "" {
		return nil, xerrors.ErrGatewayNotConfigured
	}

	endpoint := c.BaseURL + "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: verify request: %v", xerrors.ErrExternalService, err)
	}
	defer resp.Body.Close()

	var res struct {
		Status  string      `json:"status"`
		Message string      `json:"message"`
		Data    Transaction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: verify decode: %v", xerrors.ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK || res.Status != "success" {
		return nil, fmt.Errorf("%w: verify failed: %s", xerrors.ErrExternalService, res.Message)
	}
	return &res.Data, nil
}
