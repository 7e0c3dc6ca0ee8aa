// Package matcher turns raw bus signals into battery observations
// according to the configured event rules.
package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/inno/internal/errmsg"
	"github.com/llehouerou/inno/internal/rules"
)

const (
	fieldPercentage = "percentage"
	fieldState      = "state"

	batteryQueryTimeout = 2 * time.Second
)

// Message is a bus signal as seen by the matcher.
type Message struct {
	Interface string
	Member    string
	Path      string
	Sender    string
	Arg0      *string                 // leading string argument, nil when absent
	Changed   map[string]dbus.Variant // changed properties
}

// Observation is a normalized reading derived from one matched message.
type Observation struct {
	EventName  string
	Message    string // the rule's message template filled with RawValues
	Percentage *float64
	State      *string
	RawValues  map[string]string
}

// BatteryQuerier fetches a consistent (percentage, state) pair for the
// battery device at path.
type BatteryQuerier interface {
	QueryBattery(ctx context.Context, path string) (percentage float64, state string, err error)
}

// Matcher owns the debounce table for one listener and must not be shared
// between goroutines.
type Matcher struct {
	rules   []rules.Rule
	battery BatteryQuerier
	log     logrus.FieldLogger
	now     func() time.Time

	lastTrigger map[string]time.Time
}

// New creates a matcher for rules. battery may be nil to disable the
// follow-up battery query.
func New(ruleList []rules.Rule, battery BatteryQuerier, log logrus.FieldLogger) *Matcher {
	return &Matcher{
		rules:       ruleList,
		battery:     battery,
		log:         log,
		now:         time.Now,
		lastTrigger: make(map[string]time.Time),
	}
}

// Rules returns the rules the matcher evaluates.
func (m *Matcher) Rules() []rules.Rule {
	return m.rules
}

// Match evaluates msg against every enabled rule and returns one
// observation per rule that fires.
func (m *Matcher) Match(ctx context.Context, msg Message) []Observation {
	var out []Observation
	for i := range m.rules {
		rule := &m.rules[i]
		if !rule.Enabled {
			continue
		}
		obs, ok := m.matchRule(ctx, rule, msg)
		if ok {
			out = append(out, obs)
		}
	}
	return out
}

func (m *Matcher) matchRule(ctx context.Context, rule *rules.Rule, msg Message) (Observation, bool) {
	if !rule.Match.Matches(msg.Interface, msg.Member, msg.Path) {
		return Observation{}, false
	}
	if rule.Match.Sender != "" && rule.Match.Sender != msg.Sender {
		return Observation{}, false
	}
	if rule.Match.Arg0 != "" && (msg.Arg0 == nil || *msg.Arg0 != rule.Match.Arg0) {
		return Observation{}, false
	}

	if !rule.Triggered(func(key string) bool {
		_, ok := msg.Changed[key]
		return ok
	}) {
		return Observation{}, false
	}

	now := m.now()
	if rule.DebounceMs > 0 {
		window := time.Duration(rule.DebounceMs) * time.Millisecond
		if last, ok := m.lastTrigger[rule.Name]; ok && now.Sub(last) < window {
			m.log.WithField("rule", rule.Name).Debug("debounced")
			return Observation{}, false
		}
	}
	m.lastTrigger[rule.Name] = now

	obs := m.extract(rule, msg)

	if m.battery != nil && isBatteryPath(msg.Path) {
		qctx, cancel := context.WithTimeout(ctx, batteryQueryTimeout)
		pct, state, err := m.battery.QueryBattery(qctx, msg.Path)
		cancel()
		if err != nil {
			m.log.WithField("path", msg.Path).Debug(errmsg.Format(errmsg.OpBatteryQuery, err))
		} else {
			obs.Percentage = &pct
			obs.State = &state
			obs.RawValues[fieldPercentage] = fmt.Sprintf("%.0f", pct)
			obs.RawValues[fieldState] = state
		}
	}

	obs.Message = rules.FormatMessage(rule.MessageTemplate, obs.RawValues)
	return obs, true
}

func (m *Matcher) extract(rule *rules.Rule, msg Message) Observation {
	obs := Observation{
		EventName: rule.Name,
		RawValues: make(map[string]string, len(rule.Extract)),
	}

	for _, field := range rule.ExtractFields() {
		value, ok := msg.Changed[rule.Extract[field]]
		if !ok {
			continue
		}

		if field == fieldPercentage {
			pct, ok := ToFloat(value)
			if !ok {
				m.log.WithFields(logrus.Fields{
					"rule":  rule.Name,
					"value": value.String(),
				}).Debug("percentage is not numeric")
				continue
			}
			obs.Percentage = &pct
			obs.RawValues[field] = fmt.Sprintf("%.0f", pct)
			continue
		}

		raw := Stringify(value)
		if label, ok := rule.StateMap[raw]; ok {
			raw = label
		}
		obs.RawValues[field] = raw
		if field == fieldState {
			state := raw
			obs.State = &state
		}
	}

	return obs
}

func isBatteryPath(path string) bool {
	return strings.Contains(path, "battery") || strings.Contains(path, "BAT")
}
