// Package razorpay — клиент API заказов Razorpay.
package razorpay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
)

const serviceName = "razorpay"

// CreateOrderRequest — параметры заказа. Amount в минимальных единицах валюты.
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order — заказ, созданный в шлюзе.
type Order struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client вызывает Razorpay с basic-аутентификацией key_id:key_secret.
type Client struct {
	keyID      string
	keySecret  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент Razorpay.
func NewClient(keyID, keySecret, apiURL string) *Client {
	return &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// KeyID возвращает публичный ключ, который нужен клиентскому виджету оплаты.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.keyID + ":" + c.keySecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateOrder создает заказ в Razorpay.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderRequest) (*Order, error) {
	const op = "razorpay.CreateOrder"

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/orders", params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: serviceName, Message: err.Error()})
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg := gjson.GetBytes(body, "error.description").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: msg})
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%s: %w", op, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "order id missing in response"})
	}
	return &order, nil
}
