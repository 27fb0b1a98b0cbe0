package live

import (
	"math"
	"strconv"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// Placeholder is shown for absent values and timestamps.
const Placeholder = "—"

const timestampLayout = "02.01.2006, 15:04"

// Card is one rendered metric tile.
type Card struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Unit    string `json:"unit,omitempty"`
	Updated string `json:"updated"`
}

// Cards renders pH, chlorine, water temperature and battery in that order.
// Every card carries the reading's created_at in loc.
func Cards(r *models.Reading, loc *time.Location) []Card {
	var ph, cl, temp, battery *float64
	updated := Placeholder
	if r != nil {
		ph, cl, temp, battery = r.PH, r.ChlorinePPM, r.TempC, r.BatteryPct
		updated = FormatTimestamp(r.CreatedAt, loc)
	}

	return []Card{
		{Label: "pH", Value: fixed(ph, 2), Updated: updated},
		{Label: "Chlorine", Value: fixed(cl, 2), Unit: "ppm", Updated: updated},
		{Label: "Water Temp", Value: fixed(temp, 1), Unit: "°C", Updated: updated},
		{Label: "Battery", Value: rounded(battery), Unit: "%", Updated: updated},
	}
}

// FormatTimestamp renders t in loc, or the placeholder for the zero time.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Placeholder
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timestampLayout)
}

// Presentation is the JSON shape pushed to live clients. LastRefreshAt only
// changes on a successful observation; clients stamp their own clock when it
// does.
type Presentation struct {
	Reading       *models.Reading `json:"reading"`
	LastRefresh   string          `json:"last_refresh"`
	LastRefreshAt string          `json:"last_refresh_at,omitempty"`
	Stale         bool            `json:"stale"`
	Cards         []Card          `json:"cards"`
}

// Present renders s for a client in loc.
func Present(s State, loc *time.Location) Presentation {
	p := Presentation{
		Reading:     s.Reading,
		LastRefresh: FormatTimestamp(s.LastRefresh, loc),
		Stale:       s.Stale,
		Cards:       Cards(s.Reading, loc),
	}
	if !s.LastRefresh.IsZero() {
		p.LastRefreshAt = s.LastRefresh.UTC().Format(time.RFC3339Nano)
	}
	return p
}

func fixed(v *float64, decimals int) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}

func rounded(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(math.Round(*v), 'f', 0, 64)
}
