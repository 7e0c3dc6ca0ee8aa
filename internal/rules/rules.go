// Package rules defines the bus event rules that turn D-Bus signals into
// battery observations.
package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Domain is the message bus a rule listens on.
type Domain int

const (
	System Domain = iota
	Session
)

// ParseDomain maps "system"/"session" to a Domain. Anything else is
// treated as the system bus.
func ParseDomain(s string) Domain {
	if strings.EqualFold(strings.TrimSpace(s), "session") {
		return Session
	}
	return System
}

func (d Domain) String() string {
	if d == Session {
		return "session"
	}
	return "system"
}

// MatchSpec filters bus signals. Empty fields are unset; a spec with
// every field unset matches every signal.
type MatchSpec struct {
	Interface  string `koanf:"interface"`
	Member     string `koanf:"member"`
	Path       string `koanf:"path"`
	PathPrefix string `koanf:"path_prefix"`
	Arg0       string `koanf:"arg0"`
	Sender     string `koanf:"sender"`
}

// Matches tests interface, member, path and path prefix. Arg0 and Sender
// are checked by the matcher, which has the full message.
func (m MatchSpec) Matches(iface, member, path string) bool {
	if m.Interface != "" && m.Interface != iface {
		return false
	}
	if m.Member != "" && m.Member != member {
		return false
	}
	if m.Path != "" && m.Path != path {
		return false
	}
	if m.PathPrefix != "" && !strings.HasPrefix(path, m.PathPrefix) {
		return false
	}
	return true
}

// IsEmpty reports whether no field is set.
func (m MatchSpec) IsEmpty() bool {
	return m == MatchSpec{}
}

// MatchString builds the org.freedesktop.DBus.AddMatch rule for m.
func (m MatchSpec) MatchString() string {
	parts := []string{"type='signal'"}
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s='%s'", key, value))
		}
	}
	add("interface", m.Interface)
	add("member", m.Member)
	add("path", m.Path)
	add("path_namespace", m.PathPrefix)
	add("arg0", m.Arg0)
	add("sender", m.Sender)
	return strings.Join(parts, ",")
}

// Rule is one configured bus event. Immutable after load.
type Rule struct {
	Name            string
	Enabled         bool
	Bus             Domain
	Match           MatchSpec
	Extract         map[string]string // field name -> changed-property key
	StateMap        map[string]string // raw value -> label
	DebounceMs      uint64
	TriggerOn       []string
	RequireAll      bool
	MessageTemplate string
}

// Triggered reports whether the changed property keys satisfy the rule's
// trigger condition.
func (r *Rule) Triggered(changed func(key string) bool) bool {
	if len(r.TriggerOn) == 0 {
		return true
	}
	if r.RequireAll {
		for _, k := range r.TriggerOn {
			if !changed(k) {
				return false
			}
		}
		return true
	}
	for _, k := range r.TriggerOn {
		if changed(k) {
			return true
		}
	}
	return false
}

// ExtractFields returns the extract entries sorted by field name.
func (r *Rule) ExtractFields() []string {
	fields := make([]string, 0, len(r.Extract))
	for f := range r.Extract {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// RuleSet is the full set of loaded rules. It is replaced as a whole on
// reload and never mutated in place.
type RuleSet struct {
	Rules []Rule
	// Dir is the directory the rules were loaded from, empty for the
	// built-in rule.
	Dir string
}

// ByDomain returns the enabled rules listening on d.
func (rs RuleSet) ByDomain(d Domain) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Enabled && r.Bus == d {
			out = append(out, r)
		}
	}
	return out
}

// Domains returns the buses that have at least one enabled rule.
func (rs RuleSet) Domains() []Domain {
	var out []Domain
	for _, d := range []Domain{System, Session} {
		if len(rs.ByDomain(d)) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// FormatMessage replaces every {key} in template with values[key].
func FormatMessage(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

const (
	upowerDevicesPath = "/org/freedesktop/UPower/devices"
	upowerDeviceIface = "org.freedesktop.UPower.Device"
	propertiesIface   = "org.freedesktop.DBus.Properties"
)

// Builtin returns the UPower battery rule used when no rule file loads.
func Builtin() Rule {
	return Rule{
		Name:    "Battery (built-in)",
		Enabled: true,
		Bus:     System,
		Match: MatchSpec{
			Interface:  propertiesIface,
			Member:     "PropertiesChanged",
			PathPrefix: upowerDevicesPath,
			Arg0:       upowerDeviceIface,
		},
		Extract: map[string]string{
			"percentage": "Percentage",
			"state":      "State",
		},
		StateMap: map[string]string{
			"1": "charging",
			"2": "discharging",
			"4": "full",
		},
		DebounceMs:      1000,
		MessageTemplate: "{percentage}%",
	}
}
