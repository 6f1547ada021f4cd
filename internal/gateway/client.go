// Package gateway is a small client for the payment gateway REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/multazero/backend/internal/models"
)

const (
	DefaultBaseURL = "https://api.asaas.com/v3"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 2 << 20
)

// ErrPaymentNotFound is returned when the gateway answers 404 for a payment.
var ErrPaymentNotFound = errors.New("gateway payment not found")

// API is what the rest of the service needs from the gateway.
type API interface {
	ListPayments(ctx context.Context, offset, limit int) (*PaymentList, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetPixQRCode(ctx context.Context, id string) (*PixQRCode, error)
	ApplyStatus(ctx context.Context, id, gatewayStatus string) error
}

// Factory builds a client for one company's credentials.
type Factory func(creds *models.GatewayCredentials) API

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var _ API = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewFactory returns a Factory using defaultBaseURL unless the credentials carry their own.
func NewFactory(defaultBaseURL string, timeout time.Duration) Factory {
	return func(creds *models.GatewayCredentials) API {
		base := defaultBaseURL
		if creds.BaseURL != "" {
			base = creds.BaseURL
		}
		return NewClient(base, creds.APIKey, timeout)
	}
}

func (c *Client) ListPayments(ctx context.Context, offset, limit int) (*PaymentList, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	var out PaymentList
	if err := c.do(ctx, http.MethodGet, "/payments?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list payments offset=%d: %w", offset, err)
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPixQRCode(ctx context.Context, id string) (*PixQRCode, error) {
	var out PixQRCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id)+"/pixQrCode", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyStatus performs the gateway operation that moves a payment to gatewayStatus.
// OVERDUE is set by the gateway itself, so it is accepted without a remote call.
func (c *Client) ApplyStatus(ctx context.Context, id, gatewayStatus string) error {
	path := "/payments/" + url.PathEscape(id)
	switch gatewayStatus {
	case "RECEIVED":
		body := map[string]any{"paymentDate": time.Now().Format("2006-01-02")}
		return c.do(ctx, http.MethodPost, path+"/receiveInCash", body, nil)
	case "PENDING":
		return c.do(ctx, http.MethodPost, path+"/undoReceivedInCash", nil, nil)
	case "DELETED":
		return c.do(ctx, http.MethodDelete, path, nil, nil)
	case "REFUNDED":
		return c.do(ctx, http.MethodPost, path+"/refund", nil, nil)
	case "OVERDUE":
		return nil
	default:
		return fmt.Errorf("no gateway operation for status %q", gatewayStatus)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.APIKey == "" {
		return errors.New("gateway api key is not configured")
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", c.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
