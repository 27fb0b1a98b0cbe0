package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
	"github.com/hydrogem/pool-dashboard/services/api/weather"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// MockStore records the window it was asked for.
type MockStore struct {
	rows      []models.Reading
	rowsErr   error
	latest    *models.Reading
	latestErr error
	since     []time.Time
}

func (m *MockStore) ReadingsSince(ctx context.Context, since time.Time) ([]models.Reading, error) {
	m.since = append(m.since, since)
	return m.rows, m.rowsErr
}

func (m *MockStore) LatestReading(ctx context.Context) (*models.Reading, error) {
	return m.latest, m.latestErr
}

type MockWeather struct {
	forecast weather.Forecast
	err      error
	calls    int
}

func (m *MockWeather) Recent(ctx context.Context) (weather.Forecast, error) {
	m.calls++
	return m.forecast, m.err
}

type MockModel struct {
	text    string
	err     error
	prompts []string
	ctxErr  func(ctx context.Context)
}

func (m *MockModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.ctxErr != nil {
		m.ctxErr(ctx)
	}
	return m.text, m.err
}

func newTestService(store *MockStore, w *MockWeather, model *MockModel, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, w, model, opts...)
}

func TestAnalyze_Success(t *testing.T) {
	ph := 7.4
	latest := &models.Reading{ID: "r3", CreatedAt: fixedNow.Add(-time.Hour), PH: &ph}
	store := &MockStore{
		rows:   []models.Reading{{ID: "r1", CreatedAt: fixedNow.Add(-3 * time.Hour)}, *latest},
		latest: latest,
	}
	model := &MockModel{text: "All good."}

	res, err := newTestService(store, &MockWeather{}, model).Analyze(context.Background(), 24)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.Analysis != "All good." {
		t.Errorf("Expected model text, got %q", res.Analysis)
	}
	if res.Count != 2 {
		t.Errorf("Expected count 2, got %d", res.Count)
	}
	if res.Latest == nil || res.Latest.ID != "r3" {
		t.Errorf("Expected latest r3, got %+v", res.Latest)
	}
	if want := fixedNow.Add(-24 * time.Hour); !store.since[0].Equal(want) {
		t.Errorf("Expected window start %v, got %v", want, store.since[0])
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], `"id":"r3"`) {
		t.Error("Expected latest row JSON in prompt")
	}
}

func TestAnalyze_EmptyWindowWithLatest(t *testing.T) {
	latest := &models.Reading{ID: "old", CreatedAt: fixedNow.Add(-72 * time.Hour)}
	store := &MockStore{latest: latest}

	res, err := newTestService(store, &MockWeather{}, &MockModel{text: "Quiet."}).Analyze(context.Background(), 6)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("Expected count 0, got %d", res.Count)
	}
	if res.Latest == nil {
		t.Error("Expected latest to be non-null")
	}
}

func TestAnalyze_LatestFailureDegrades(t *testing.T) {
	store := &MockStore{latestErr: errors.New("timeout")}
	model := &MockModel{text: "ok"}

	res, err := newTestService(store, &MockWeather{}, model).Analyze(context.Background(), 24)
	if err != nil {
		t.Fatalf("Expected latest failure to be tolerated, got %v", err)
	}
	if res.Latest != nil {
		t.Errorf("Expected nil latest, got %+v", res.Latest)
	}
	if !strings.Contains(model.prompts[0], "Latest row (for “current status”): none") {
		t.Error("Expected prompt to say none for missing latest row")
	}
}

func TestAnalyze_EmptyModelText(t *testing.T) {
	res, err := newTestService(&MockStore{}, &MockWeather{}, &MockModel{text: ""}).Analyze(context.Background(), 24)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Analysis != FallbackText {
		t.Errorf("Expected fallback text, got %q", res.Analysis)
	}
	if FallbackText != "No analysis returned." {
		t.Errorf("Unexpected fallback literal %q", FallbackText)
	}
}

func TestAnalyze_Failures(t *testing.T) {
	testCases := []struct {
		name     string
		store    *MockStore
		weather  *MockWeather
		model    *MockModel
		errorMsg string
	}{
		{
			name:     "Window query fails",
			store:    &MockStore{rowsErr: errors.New("relation does not exist")},
			weather:  &MockWeather{},
			model:    &MockModel{},
			errorMsg: "query readings: relation does not exist",
		},
		{
			name:     "Weather fails",
			store:    &MockStore{},
			weather:  &MockWeather{err: errors.New("dial tcp")},
			model:    &MockModel{},
			errorMsg: "fetch weather: dial tcp",
		},
		{
			name:     "Model fails",
			store:    &MockStore{},
			weather:  &MockWeather{},
			model:    &MockModel{err: errors.New("rate limited")},
			errorMsg: "complete: rate limited",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestService(tc.store, tc.weather, tc.model).Analyze(context.Background(), 24)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if err.Error() != tc.errorMsg {
				t.Errorf("Expected %q, got %q", tc.errorMsg, err.Error())
			}
		})
	}
}

func TestAnalyze_WindowQueryFailureSkipsModel(t *testing.T) {
	w := &MockWeather{}
	model := &MockModel{}
	_, err := newTestService(&MockStore{rowsErr: errors.New("down")}, w, model).Analyze(context.Background(), 24)
	if err == nil {
		t.Fatal("Expected error")
	}
	if w.calls != 0 || len(model.prompts) != 0 {
		t.Error("Expected no weather or model call after a failed window query")
	}
}

func TestAnalyze_TimeoutBoundsOutboundCalls(t *testing.T) {
	var hadDeadline bool
	model := &MockModel{text: "ok", ctxErr: func(ctx context.Context) {
		_, hadDeadline = ctx.Deadline()
	}}

	_, err := newTestService(&MockStore{}, &MockWeather{}, model, WithTimeout(time.Second)).Analyze(context.Background(), 24)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !hadDeadline {
		t.Error("Expected outbound context to carry a deadline")
	}
}
