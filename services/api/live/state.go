// Package live keeps the "current reading" of a dashboard view in sync with
// three racing sources: the initial server value, point fetches and push
// notifications. Every source goes through Apply.
package live

import (
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// State is what one mounted view holds.
type State struct {
	Reading     *models.Reading
	LastRefresh time.Time // client-observed; zero until the first successful observation
	Stale       bool      // the most recent fetch attempt failed
}

// Observation is one input to the reducer.
type Observation struct {
	Reading *models.Reading
	Failed  bool
}

// Candidate wraps a reading from a fetch or a push.
func Candidate(r models.Reading) Observation {
	return Observation{Reading: &r}
}

// EmptyPoll is a successful latest-row query that found no row.
func EmptyPoll() Observation {
	return Observation{}
}

// FailedPoll is a latest-row query that returned an error.
func FailedPoll() Observation {
	return Observation{Failed: true}
}

// Apply merges o into s. The held reading only moves forward in created_at;
// on equal timestamps the reading applied first stays.
func Apply(s State, o Observation, now time.Time) State {
	if o.Failed {
		s.Stale = true
		return s
	}

	if o.Reading != nil && (s.Reading == nil || o.Reading.NewerThan(*s.Reading)) {
		r := *o.Reading
		s.Reading = &r
	}
	s.LastRefresh = now
	s.Stale = false
	return s
}
