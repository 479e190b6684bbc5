package seerbit

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"referral-service/internal/usecase/withdrawal"
	xerrors "referral-service/internal/xerrors"
)

// Client talks to the Seerbit payout API. Bearer tokens are obtained with
// basic auth against the key pair and cached in memory until shortly before
// expiry.
type Client struct {
	BaseURL    string
	PublicKey  string
	SecretKey  string
	HttpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(baseURL, publicKey, secretKey string) *Client {
	if baseURL == "" {
		baseURL = "https://seerbitapi.com"
	}
	return &Client{
		BaseURL:    baseURL,
		PublicKey:  publicKey,
		SecretKey:  secretKey,
		HttpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v2/auth", bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.PublicKey, c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: auth request: %v", xerrors.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: auth failed: %s", xerrors.ErrExternalService, string(body))
	}

	var res struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: auth decode: %v", xerrors.ErrExternalService, err)
	}
	if res.Data.Token == "" {
		return "", fmt.Errorf("%w: auth response missing token", xerrors.ErrExternalService)
	}

	c.token = res.Data.Token
	c.tokenExpiry = time.Now().Add(50 * time.Minute)
	return c.token, nil
}

type transferPayload struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
	Amount        string `json:"amount"`
	AccountName   string `json:"accountName"`
	Narration     string `json:"narration"`
	Reference     string `json:"reference"`
	Currency      string `json:"currency"`
	Country       string `json:"country"`
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status               string `json:"status"`
		TransactionReference string `json:"transactionReference"`
	} `json:"data"`
}

// InitiateTransfer submits a bank payout. A definitive gateway rejection
// comes back as a FAILED result; transport and auth problems are errors
// wrapping xerrors.ErrExternalService so callers can leave the withdrawal
// PENDING.
func (c *Client) InitiateTransfer(ctx context.Context, tr withdrawal.TransferRequest) (*withdrawal.TransferResult, error) {
	if !c.Configured() {
		return nil, xerrors.ErrGatewayNotConfigured
	}

	code, ok := BankCode(tr.BankName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrUnknownBank, tr.BankName)
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := transferPayload{
		AccountNumber: tr.AccountNumber,
		BankCode:      code,
		Amount:        tr.Amount.String(),
		AccountName:   tr.AccountName,
		Narration:     tr.Narration,
		Reference:     tr.Reference,
		Currency:      "NGN",
		Country:       "NG",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v2/transfers/bank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: transfer request: %v", xerrors.ErrExternalService, err)
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: transfer decode: %v", xerrors.ErrExternalService, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: transfer failed: %s", xerrors.ErrExternalService, res.Message)
	}

	status := res.Data.Status
	if status == "" {
		status = res.Status
	}
	ref := res.Data.TransactionReference
	if ref == "" {
		ref = tr.Reference
	}
	if resp.StatusCode != http.StatusOK {
		// Gateway rejected the request outright.
		return &withdrawal.TransferResult{
			TransactionReference: ref,
			Status:               "FAILED",
			Message:              res.Message,
		}, nil
	}

	return &withdrawal.TransferResult{
		TransactionReference: ref,
		Status:               status,
		Message:              res.Message,
	}, nil
}

// VerifyTransaction fetches the current status of a transfer by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*withdrawal.TransferResult, error) {
	if !c.Configured() {
		return nil, xerrors.ErrGatewayNotConfigured
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v2/transactions/"+reference, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: verify request: %v", xerrors.ErrExternalService, err)
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: verify decode: %v", xerrors.ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: verify failed: %s", xerrors.ErrExternalService, res.Message)
	}

	status := res.Data.Status
	if status == "" {
		status = res.Status
	}
	ref := res.Data.TransactionReference
	if ref == "" {
		ref = reference
	}
	return &withdrawal.TransferResult{
		TransactionReference: ref,
		Status:               status,
		Message:              res.Message,
	}, nil
}

// VerifySignature checks a webhook signature: hex(sha512(rawBody + secret)).
// With no secret configured all signatures are rejected; the handler decides
// whether that matters outside production.
func (c *Client) VerifySignature(rawBody []byte, signature string) bool {
	if c.SecretKey == "" || signature == "" {
		return false
	}
	sum := sha512.Sum512(append(append([]byte{}, rawBody...), []byte(c.SecretKey)...))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
