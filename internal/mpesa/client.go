package mpesa

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// tokenSkew is subtracted from expires_in so a cached token is never used at the edge of expiry.
const tokenSkew = 60 * time.Second

// Client talks to the M-Pesa Daraja API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	// tokenSem is a one-slot semaphore: a single token fetch is in flight and
	// callers waiting behind it give up when their own context ends.
	tokenSem    chan struct{}
	token       string
	tokenExpiry time.Time
}

// NewClient creates a client for the given provider configuration.
func NewClient(cfg Config) *Client {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: tr},
		now:        time.Now,
		tokenSem:   make(chan struct{}, 1),
	}
}

// Password is the rolling STK password: base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// GetAccessToken returns a client-credentials OAuth token, reusing a cached
// one while it is still valid. Every failure is a *TokenError.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	select {
	case c.tokenSem <- struct{}{}:
	case <-ctx.Done():
		return "", &TokenError{Cause: ctx.Err()}
	}
	defer func() { <-c.tokenSem }()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.tokenTimeout())
	defer cancel()

	url := c.cfg.baseURL() + "/oauth/v1/generate?grant_type=client_credentials"
	logrus.WithField("url", url).Debug("Requesting M-Pesa token")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &TokenError{Cause: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TokenError{Cause: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("failed to close token response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TokenError{Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &TokenError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Cause:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &TokenError{Cause: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &TokenError{Cause: errors.New("empty access token in response")}
	}

	ttl := 50 * time.Minute
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && time.Duration(secs)*time.Second > tokenSkew {
		ttl = time.Duration(secs)*time.Second - tokenSkew
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)

	return c.token, nil
}

// InitiateSTKPush sends a Lipa Na M-Pesa Online prompt to the customer's phone.
// The outcome arrives later on the configured callback URL.
func (c *Client) InitiateSTKPush(ctx context.Context, p STKPushParams) (*STKPushResponse, error) {
	if !p.Amount.IsPositive() {
		return nil, &STKError{Kind: KindUnexpected, Cause: fmt.Errorf("amount must be positive, got %s", p.Amount)}
	}

	timestamp := c.now().Format(TimestampLayout)
	phone := SanitizePhone(p.Phone)
	payload := STKPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   TransactionType,
		Amount:            p.Amount.Ceil().IntPart(), // Provider only takes whole shillings
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  p.AccountReference,
		TransactionDesc:   "Unlock " + p.Title,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &STKError{Kind: KindUnexpected, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.pushTimeout())
	defer cancel()

	url := c.cfg.baseURL() + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &STKError{Kind: KindUnexpected, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	logrus.WithFields(logrus.Fields{
		"phone":             phone,
		"amount":            payload.Amount,
		"account_reference": p.AccountReference,
	}).Info("Initiating STK push")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &STKError{Kind: classifyTransportErr(err), Cause: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("failed to close stk response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &STKError{Kind: classifyTransportErr(err), Cause: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &STKError{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Cause:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var out STKPushResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &STKError{Kind: KindUnexpected, Body: string(respBody), Cause: fmt.Errorf("decode stk response: %w", err)}
	}
	if out.ResponseCode != "0" {
		return nil, &STKError{
			Kind:  KindUnexpected,
			Body:  string(respBody),
			Cause: fmt.Errorf("push not accepted: code %q: %s", out.ResponseCode, out.ResponseDescription),
		}
	}

	logrus.WithFields(logrus.Fields{
		"merchant_request_id": out.MerchantRequestID,
		"checkout_request_id": out.CheckoutRequestID,
	}).Info("STK push accepted")

	return &out, nil
}
