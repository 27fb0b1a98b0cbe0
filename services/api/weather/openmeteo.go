package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// HourlyMetrics are the Open-Meteo series the analysis uses.
var HourlyMetrics = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"uv_index",
	"precipitation",
	"windspeed_10m",
}

const defaultTimezone = "Europe/Berlin"

var (
	ErrCircuitOpen = errors.New("weather circuit breaker open")
	errUnexpected  = errors.New("unexpected status code")
)

// Hourly is the decoded hourly block. Open-Meteo reports missing samples as null.
type Hourly struct {
	Time               []string   `json:"time"`
	Temperature2m      []*float64 `json:"temperature_2m"`
	RelativeHumidity2m []*float64 `json:"relative_humidity_2m"`
	UVIndex            []*float64 `json:"uv_index"`
	Precipitation      []*float64 `json:"precipitation"`
	Windspeed10m       []*float64 `json:"windspeed_10m"`
}

// Forecast is the subset of the /v1/forecast response we read.
type Forecast struct {
	Timezone string `json:"timezone"`
	Hourly   Hourly `json:"hourly"`
}

// Summary condenses a forecast to the trailing samples of each metric.
type Summary struct {
	Timezone string     `json:"timezone"`
	Start    string     `json:"start,omitempty"`
	End      string     `json:"end,omitempty"`
	Temp     []*float64 `json:"temp"`
	RH       []*float64 `json:"rh"`
	UV       []*float64 `json:"uv"`
	Precip   []*float64 `json:"precip"`
	Wind     []*float64 `json:"wind"`
}

// Summarize keeps the last n samples per metric.
func (f Forecast) Summarize(n int) Summary {
	s := Summary{
		Timezone: f.Timezone,
		Temp:     tail(f.Hourly.Temperature2m, n),
		RH:       tail(f.Hourly.RelativeHumidity2m, n),
		UV:       tail(f.Hourly.UVIndex, n),
		Precip:   tail(f.Hourly.Precipitation, n),
		Wind:     tail(f.Hourly.Windspeed10m, n),
	}
	if len(f.Hourly.Time) > 0 {
		s.Start = f.Hourly.Time[0]
		s.End = f.Hourly.Time[len(f.Hourly.Time)-1]
	}
	return s
}

func tail(values []*float64, n int) []*float64 {
	if n < 0 {
		n = 0
	}
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// Client fetches hourly forecasts for a fixed location from Open-Meteo.
type Client struct {
	baseURL  string
	lat, lon float64
	timezone string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
}

// NewClient returns a client for the given coordinates. client may be nil.
func NewClient(client *http.Client, baseURL string, lat, lon float64) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,

		// A caller giving up is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		lat:      lat,
		lon:      lon,
		timezone: defaultTimezone,
		client:   client,
		circuit:  cb,
	}
}

// Recent returns hourly data spanning one day back and one day ahead.
func (c *Client) Recent(ctx context.Context) (Forecast, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(c.lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(c.lon, 'f', -1, 64))
	values.Set("timezone", c.timezone)
	values.Set("past_days", "1")
	values.Set("forecast_days", "1")
	values.Set("hourly", strings.Join(HourlyMetrics, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return Forecast{}, err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request forecast: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %s", errUnexpected, resp.Status)
		}

		var payload Forecast
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode forecast: %w", err)
		}
		return payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Forecast{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return Forecast{}, err
	}

	return result.(Forecast), nil
}
