package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/riel-labs/khqr-gateway/internal/monitor"
)

// Client is an authenticated Bakong open-API client. It is the only
// component that talks to the payment authority; the monitor engine sees it
// through the StatusChecker interface.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

type txData struct {
	Hash          string  `json:"hash"`
	FromAccountID string  `json:"fromAccountId"`
	ToAccountID   string  `json:"toAccountId"`
	Currency      string  `json:"currency"`
	Amount        float64 `json:"amount"`
}

type checkResponse struct {
	ResponseCode    int     `json:"responseCode"`
	ResponseMessage string  `json:"responseMessage"`
	Data            *txData `json:"data"`
}

// Check implements monitor.StatusChecker via /check_transaction_by_md5.
// responseCode 0 with transaction data means settled; any other well-formed
// response means not (yet) paid. Transport failures and non-2xx statuses are
// returned as errors for the scheduler to treat as transient.
func (c *Client) Check(ctx context.Context, fingerprint string) (monitor.CheckResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/check_transaction_by_md5", map[string]string{"md5": fingerprint})
	if err != nil {
		return monitor.CheckResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return monitor.CheckResult{}, fmt.Errorf("bakong check %s: status %d", fingerprint, resp.StatusCode)
	}

	var cr checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return monitor.CheckResult{}, fmt.Errorf("bakong check %s: decode: %w", fingerprint, err)
	}
	if cr.ResponseCode != 0 || cr.Data == nil {
		return monitor.CheckResult{Status: monitor.CheckNotPaid}, nil
	}
	return monitor.CheckResult{
		Status: monitor.CheckPaid,
		Details: monitor.TxDetails{
			Hash:          cr.Data.Hash,
			FromAccountID: cr.Data.FromAccountID,
			ToAccountID:   cr.Data.ToAccountID,
			Amount:        cr.Data.Amount,
			Currency:      cr.Data.Currency,
		},
	}, nil
}

type deeplinkResponse struct {
	ResponseCode int `json:"responseCode"`
	Data         *struct {
		ShortLink string `json:"shortLink"`
	} `json:"data"`
}

// GenerateDeeplink exchanges a QR payload for a short link that opens it in
// a Bakong-enabled banking app.
func (c *Client) GenerateDeeplink(ctx context.Context, qr string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/generate_deeplink_by_qr", map[string]string{"qr": qr})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bakong deeplink: status %d", resp.StatusCode)
	}

	var dr deeplinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("bakong deeplink: decode: %w", err)
	}
	if dr.ResponseCode != 0 || dr.Data == nil || dr.Data.ShortLink == "" {
		return "", fmt.Errorf("bakong deeplink: rejected (code %d)", dr.ResponseCode)
	}
	return dr.Data.ShortLink, nil
}
