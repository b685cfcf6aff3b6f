// Package mpesa is a thin client for the Daraja STK Push API: an OAuth
// token call, the processrequest initiation call and the status query.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/somasaidi/somasaidi/internal/config"
)

// accountReferenceMax is the gateway's field-length limit for AccountReference.
const accountReferenceMax = 12

type Client struct {
	httpc     *http.Client
	baseURL   string
	key       string
	secret    string
	shortCode string
	passkey   string
	callback  string
	now       func() time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpc:     &http.Client{Timeout: timeout},
		baseURL:   cfg.BaseURL,
		key:       cfg.ConsumerKey,
		secret:    cfg.ConsumerSecret,
		shortCode: cfg.ShortCode,
		passkey:   cfg.Passkey,
		callback:  cfg.CallbackURL,
		now:       time.Now,
	}
}

// InitiateSTKPush sends a payment prompt to the customer's phone. An explicit
// decline comes back as *RejectionError; any other error is a transport
// failure and the attempt may still resolve via callback.
func (c *Client) InitiateSTKPush(ctx context.Context, req STKPushRequest) (STKPushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return STKPushResponse{}, err
	}
	password, timestamp := c.password()

	ref := req.AccountReference
	if len(ref) > accountReferenceMax {
		ref = ref[:accountReferenceMax]
	}

	payload := map[string]interface{}{
		"BusinessShortCode": c.shortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.PhoneNumber,
		"PartyB":            c.shortCode,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       c.callback,
		"AccountReference":  ref,
		"TransactionDesc":   req.Description,
	}

	var resp STKPushResponse
	status, body, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &resp)
	if err != nil {
		return STKPushResponse{}, err
	}
	if status != http.StatusOK {
		return STKPushResponse{}, &RejectionError{Code: fmt.Sprint(status), Description: errorMessage(body)}
	}
	if resp.ResponseCode != "0" {
		return STKPushResponse{}, &RejectionError{Code: resp.ResponseCode, Description: resp.ResponseDescription}
	}
	return resp, nil
}

// QuerySTKStatus asks the gateway for the outcome of an initiated push.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (STKQueryResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return STKQueryResponse{}, err
	}
	password, timestamp := c.password()

	payload := map[string]interface{}{
		"BusinessShortCode": c.shortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var resp STKQueryResponse
	status, body, err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &resp)
	if err != nil {
		return STKQueryResponse{}, err
	}
	if status != http.StatusOK {
		return STKQueryResponse{}, fmt.Errorf("stk query returned %d: %s", status, errorMessage(body))
	}
	return resp, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.key + ":" + c.secret))
	req.Header.Set("Authorization", "Basic "+auth)

	res, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa token request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa token request returned %d", res.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("mpesa token response missing access_token")
	}
	return out.AccessToken, nil
}

// password derives the request password: base64(shortcode+passkey+timestamp),
// timestamp formatted as YYYYMMDDHHMMSS.
func (c *Client) password() (password, timestamp string) {
	timestamp = c.now().UTC().Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))
	return password, timestamp
}

func (c *Client) post(ctx context.Context, path, token string, payload interface{}, out interface{}) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("mpesa request %s: %w", path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}
	if res.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return 0, nil, fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return res.StatusCode, body, nil
}

func errorMessage(body []byte) string {
	var out struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &out); err == nil && out.ErrorMessage != "" {
		return out.ErrorMessage
	}
	return string(body)
}
