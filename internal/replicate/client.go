// Package replicate — клиент API предсказаний Replicate.
//
// Create ставит задачу трансформации и сразу возвращает ее идентификатор,
// Get сообщает текущее состояние задачи и, при успехе, ссылку на результат.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/magabrotheeeer/mirage-ghibli/internal/apperr"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

const serviceName = "replicate"

// Статусы задачи на стороне Replicate.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Prediction — состояние удаленной задачи.
type Prediction struct {
	ID     string
	Status string
	Output string
	Error  string
}

// Client вызывает Replicate с фиксированной версией модели и стилевым промптом.
type Client struct {
	apiToken   string
	baseURL    string
	version    string
	prompt     string
	httpClient *http.Client
}

// NewClient создаёт клиент Replicate.
func NewClient(apiToken, baseURL, version, prompt string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiToken:   apiToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		prompt:     prompt,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createRequest struct {
	Version string      `json:"version"`
	Input   createInput `json:"input"`
}

type createInput struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt,omitempty"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Create ставит задачу трансформации изображения imageDataURI (data:<mime>;base64,...).
func (c *Client) Create(ctx context.Context, imageDataURI string) (*Prediction, error) {
	const op = "replicate.Create"

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/predictions", createRequest{
		Version: c.version,
		Input:   createInput{Image: imageDataURI, Prompt: c.prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Get возвращает состояние задачи id.
func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	const op = "replicate.Get"

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamError{Service: serviceName, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "invalid JSON response"}
	}
	p := parsePrediction(body)
	if p.ID == "" {
		return nil, &apperr.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Message: "prediction id missing"}
	}
	return p, nil
}

func parsePrediction(body []byte) *Prediction {
	res := gjson.ParseBytes(body)
	p := &Prediction{
		ID:     res.Get("id").String(),
		Status: res.Get("status").String(),
	}

	output := res.Get("output")
	switch {
	case output.IsArray():
		items := output.Array()
		if len(items) > 0 {
			p.Output = items[len(items)-1].String()
		}
	case output.Type == gjson.String:
		p.Output = output.String()
	}

	if e := res.Get("error"); e.Exists() && e.Type != gjson.Null {
		if e.Type == gjson.String {
			p.Error = e.String()
		} else {
			p.Error = e.Raw
		}
	}
	return p
}

func errorMessage(body []byte, fallback string) string {
	for _, path := range []string{"detail", "error", "title"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
		return s
	}
	return fallback
}

// MapStatus приводит статус Replicate к состоянию трансформации.
// Неизвестные статусы считаются незавершенными.
func MapStatus(status string) models.TransformationStatus {
	switch status {
	case StatusSucceeded:
		return models.StatusSucceeded
	case StatusFailed, StatusCanceled:
		return models.StatusFailed
	default:
		return models.StatusProcessing
	}
}
