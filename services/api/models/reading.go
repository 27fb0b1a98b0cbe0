package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Reading is one timestamped sample from the pool device.
// Absent sensor values are nil and encode as JSON null.
type Reading struct {
	ID          string    `json:"id" validate:"required"`
	CreatedAt   time.Time `json:"created_at" validate:"required"`
	PH          *float64  `json:"ph" validate:"omitempty,gte=0,lte=14"`
	ChlorinePPM *float64  `json:"chlorine_ppm" validate:"omitempty,gte=0"`
	TempC       *float64  `json:"temp_c"`
	BatteryPct  *float64  `json:"battery_pct" validate:"omitempty,gte=0,lte=100"`
}

var validate = validator.New()

// Validate applies the basic range checks to a reading received from outside
// the store's query path (push payloads).
func (r Reading) Validate() error {
	return validate.Struct(r)
}

// NewerThan reports whether r is strictly newer than other.
func (r Reading) NewerThan(other Reading) bool {
	return r.CreatedAt.After(other.CreatedAt)
}
