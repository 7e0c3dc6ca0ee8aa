// Package signals selects which configured signal applies to a battery
// reading.
package signals

import (
	"strings"

	"github.com/llehouerou/inno/internal/config"
)

// AnyState is the state filter that matches every state.
const AnyState = "any"

// Charging is the state that flips the threshold direction.
const Charging = "charging"

// Find returns the highest-priority signal matching percentage and state,
// or nil when none applies.
//
// While charging a signal matches when percentage >= threshold and the
// largest threshold wins; otherwise it matches when percentage <= threshold
// and the smallest threshold wins. Among equal thresholds the signal
// declared first wins.
func Find(percentage float64, state string, defs []config.Signal) *config.Signal {
	charging := strings.EqualFold(state, Charging)

	var best *config.Signal
	for i := range defs {
		s := &defs[i]
		if !Matches(s, percentage, state) {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		if charging && s.Threshold > best.Threshold {
			best = s
		} else if !charging && s.Threshold < best.Threshold {
			best = s
		}
	}
	return best
}

// Matches reports whether s applies to percentage and state, ignoring
// priority.
func Matches(s *config.Signal, percentage float64, state string) bool {
	if !strings.EqualFold(s.StateFilter, AnyState) && !strings.EqualFold(s.StateFilter, state) {
		return false
	}
	if strings.EqualFold(state, Charging) {
		return percentage >= s.Threshold
	}
	return percentage <= s.Threshold
}
