package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
	"github.com/hydrogem/pool-dashboard/services/api/weather"
)

// FallbackText replaces an empty model response.
const FallbackText = "No analysis returned."

// ReadingStore is the part of the reading store the analysis reads.
type ReadingStore interface {
	ReadingsSince(ctx context.Context, since time.Time) ([]models.Reading, error)
	LatestReading(ctx context.Context) (*models.Reading, error)
}

// WeatherSource returns hourly weather around now.
type WeatherSource interface {
	Recent(ctx context.Context) (weather.Forecast, error)
}

// Completer runs one text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is a successful analysis.
type Result struct {
	Analysis string          `json:"analysis"`
	Latest   *models.Reading `json:"latest"`
	Count    int             `json:"count"`
}

// Service gathers readings and weather and asks the model for an assessment.
type Service struct {
	store   ReadingStore
	weather WeatherSource
	model   Completer
	timeout time.Duration
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithTimeout bounds all outbound calls of one Analyze. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the three collaborators.
func NewService(store ReadingStore, weather WeatherSource, model Completer, opts ...Option) *Service {
	s := &Service{store: store, weather: weather, model: model, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs one analysis over the trailing window of hours.
func (s *Service) Analyze(ctx context.Context, hours float64) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now()
	since := WindowStart(now, hours)

	rows, err := s.store.ReadingsSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("query readings: %w", err)
	}

	// The window may be empty while older rows exist; the latest row is
	// best effort.
	latest, err := s.store.LatestReading(ctx)
	if err != nil {
		log.Printf("latest reading unavailable: %v", err)
		latest = nil
	}

	forecast, err := s.weather.Recent(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch weather: %w", err)
	}

	prompt, err := BuildPrompt(PromptInput{
		Hours:   hours,
		Now:     now,
		Latest:  latest,
		Rows:    rows,
		Weather: forecast.Summarize(WeatherSamples),
	})
	if err != nil {
		return Result{}, fmt.Errorf("build prompt: %w", err)
	}

	text, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("complete: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = FallbackText
	}

	return Result{Analysis: text, Latest: latest, Count: len(rows)}, nil
}
