package analysis

import (
	"encoding/json"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultHours is the window used when the request does not name a valid one.
const DefaultHours = 24

// Window bounds offered by the dashboards. The handler itself accepts any
// positive value.
const (
	MinWindowHours = 1
	MaxWindowHours = 168
)

var validate = validator.New()

// Request is the optional JSON body of POST /api/analyze.
type Request struct {
	Hours *float64 `json:"hours" validate:"required,gt=0"`
}

// ParseHours reads the window size from a request body. A missing or
// malformed body, a non-numeric value and a non-positive value all yield
// DefaultHours; none of them is an error.
func ParseHours(body []byte) float64 {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return DefaultHours
	}
	if err := validate.Struct(req); err != nil {
		return DefaultHours
	}
	return *req.Hours
}

// WindowStart returns now minus hours. Windows too large for a Duration
// start at the zero time, which selects every row.
func WindowStart(now time.Time, hours float64) time.Time {
	span := hours * float64(time.Hour)
	if span >= math.MaxInt64 {
		return time.Time{}
	}
	return now.Add(-time.Duration(span))
}
