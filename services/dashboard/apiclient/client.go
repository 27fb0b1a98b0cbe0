package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// ErrAnalysis marks a response the API answered with ok=false.
var ErrAnalysis = errors.New("analysis failed")

// Result is a successful POST /api/analyze response.
type Result struct {
	Analysis string          `json:"analysis"`
	Latest   *models.Reading `json:"latest"`
	Count    int             `json:"count"`
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Result
}

// Client talks to the dashboard API.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient returns a client rooted at baseURL, e.g. http://localhost:8080.
func NewClient(client *http.Client, baseURL string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Analyze requests an analysis over the trailing window of hours.
func (c *Client) Analyze(ctx context.Context, hours float64) (Result, error) {
	body, err := json.Marshal(map[string]float64{"hours": hours})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request analysis: %w", err)
	}
	defer resp.Body.Close()

	var payload envelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Result{}, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if !payload.OK {
		msg := payload.Error
		if msg == "" {
			msg = resp.Status
		}
		return Result{}, fmt.Errorf("%w: %s", ErrAnalysis, msg)
	}

	return payload.Result, nil
}
