package rules

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestMatchSpec_Matches(t *testing.T) {
	spec := MatchSpec{
		Interface:  "org.freedesktop.DBus.Properties",
		Member:     "PropertiesChanged",
		PathPrefix: "/org/freedesktop/UPower/devices",
	}

	tests := []struct {
		name                string
		iface, member, path string
		want                bool
	}{
		{"all fields match", "org.freedesktop.DBus.Properties", "PropertiesChanged", "/org/freedesktop/UPower/devices/battery_BAT0", true},
		{"wrong interface", "org.freedesktop.UPower", "PropertiesChanged", "/org/freedesktop/UPower/devices/battery_BAT0", false},
		{"wrong member", "org.freedesktop.DBus.Properties", "Changed", "/org/freedesktop/UPower/devices/battery_BAT0", false},
		{"path outside prefix", "org.freedesktop.DBus.Properties", "PropertiesChanged", "/org/bluez/hci0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.Matches(tt.iface, tt.member, tt.path))
		})
	}
}

func TestMatchSpec_ExactPath(t *testing.T) {
	spec := MatchSpec{Path: "/a/b"}
	assert.True(t, spec.Matches("x", "y", "/a/b"))
	assert.False(t, spec.Matches("x", "y", "/a/b/c"))
}

func TestMatchSpec_EmptyMatchesEverything(t *testing.T) {
	var spec MatchSpec
	assert.True(t, spec.IsEmpty())
	assert.True(t, spec.Matches("any.Interface", "Member", "/any/path"))
	assert.True(t, spec.Matches("", "", ""))
}

func TestMatchSpec_MatchString(t *testing.T) {
	assert.Equal(t, "type='signal'", MatchSpec{}.MatchString())

	got := Builtin().Match.MatchString()
	assert.Equal(t,
		"type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',"+
			"path_namespace='/org/freedesktop/UPower/devices',arg0='org.freedesktop.UPower.Device'",
		got)

	got = MatchSpec{Path: "/p", Sender: ":1.42"}.MatchString()
	assert.Equal(t, "type='signal',path='/p',sender=':1.42'", got)
}

func TestRule_Triggered(t *testing.T) {
	changed := func(keys ...string) func(string) bool {
		return func(k string) bool {
			for _, c := range keys {
				if c == k {
					return true
				}
			}
			return false
		}
	}

	tests := []struct {
		name       string
		triggerOn  []string
		requireAll bool
		changed    []string
		want       bool
	}{
		{"empty trigger always fires", nil, false, nil, true},
		{"any with one present", []string{"Percentage", "State"}, false, []string{"State"}, true},
		{"any with none present", []string{"Percentage"}, false, []string{"Energy"}, false},
		{"all with one missing", []string{"Percentage"}, true, []string{"State"}, false},
		{"all with all present", []string{"Percentage", "State"}, true, []string{"State", "Percentage", "Energy"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rule{TriggerOn: tt.triggerOn, RequireAll: tt.requireAll}
			assert.Equal(t, tt.want, r.Triggered(changed(tt.changed...)))
		})
	}
}

func TestRuleSet_ByDomain(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{Name: "a", Enabled: true, Bus: System},
		{Name: "b", Enabled: true, Bus: Session},
		{Name: "c", Enabled: false, Bus: Session},
		{Name: "d", Enabled: true, Bus: System},
	}}

	system := rs.ByDomain(System)
	require.Len(t, system, 2)
	assert.Equal(t, "a", system[0].Name)
	assert.Equal(t, "d", system[1].Name)

	session := rs.ByDomain(Session)
	require.Len(t, session, 1)
	assert.Equal(t, "b", session[0].Name)

	assert.Equal(t, []Domain{System, Session}, rs.Domains())
	assert.Equal(t, []Domain{System}, RuleSet{Rules: []Rule{Builtin()}}.Domains())
}

func TestFormatMessage(t *testing.T) {
	got := FormatMessage("{percentage}% ({state})", map[string]string{
		"percentage": "42",
		"state":      "charging",
	})
	assert.Equal(t, "42% (charging)", got)
	assert.Equal(t, "{percentage}%", FormatMessage("{percentage}%", nil))
	assert.Equal(t, "{missing}", FormatMessage("{missing}", map[string]string{"x": "y"}))
}

func TestParseDomain(t *testing.T) {
	assert.Equal(t, Session, ParseDomain("Session"))
	assert.Equal(t, System, ParseDomain("system"))
	assert.Equal(t, System, ParseDomain(""))
	assert.Equal(t, "session", Session.String())
}

func writeRule(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

const headsetRule = `
name = "Headset battery"
bus = "session"

[match]
interface = "org.freedesktop.DBus.Properties"
member = "PropertiesChanged"
path_prefix = "/org/bluez"
arg0 = "org.bluez.Battery1"

[extract]
percentage = "Percentage"

[format]
message = "Headset {percentage}%"

[conditions]
trigger_on = ["Percentage"]
debounce_ms = 5000
require_all = true
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "headset.toml", headsetRule)

	rule, err := LoadFile(filepath.Join(dir, "headset.toml"))
	require.NoError(t, err)

	assert.Equal(t, "Headset battery", rule.Name)
	assert.True(t, rule.Enabled)
	assert.Equal(t, Session, rule.Bus)
	assert.Equal(t, "/org/bluez", rule.Match.PathPrefix)
	assert.Equal(t, "org.bluez.Battery1", rule.Match.Arg0)
	assert.Equal(t, map[string]string{"percentage": "Percentage"}, rule.Extract)
	assert.Equal(t, "Headset {percentage}%", rule.MessageTemplate)
	assert.Equal(t, []string{"Percentage"}, rule.TriggerOn)
	assert.Equal(t, uint64(5000), rule.DebounceMs)
	assert.True(t, rule.RequireAll)
}

func TestLoadFile_DefaultsNameAndBus(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "power.toml", "[match]\nmember = \"PropertiesChanged\"\n")

	rule, err := LoadFile(filepath.Join(dir, "power.toml"))
	require.NoError(t, err)
	assert.Equal(t, "power", rule.Name)
	assert.Equal(t, System, rule.Bus)
	assert.True(t, rule.Enabled)
	assert.Zero(t, rule.DebounceMs)
}

func TestLoad_FirstExistingDirWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeRule(t, first, "b.toml", headsetRule)
	writeRule(t, first, "a.toml", "name = \"Alpha\"\n[match]\nmember = \"X\"\n")
	writeRule(t, first, "off.toml", "name = \"Off\"\nenabled = false\n")
	writeRule(t, first, "broken.toml", "name = [\n")
	writeRule(t, first, "notes.txt", "ignored")
	writeRule(t, second, "other.toml", "name = \"Other\"\n")

	missing := filepath.Join(t.TempDir(), "absent")
	rs := Load(quietLogger(), []string{missing, first, second})

	assert.Equal(t, first, rs.Dir)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "Alpha", rs.Rules[0].Name)
	assert.Equal(t, "Headset battery", rs.Rules[1].Name)
}

func TestLoad_FallsBackToBuiltin(t *testing.T) {
	empty := t.TempDir()
	rs := Load(quietLogger(), []string{empty})

	require.Len(t, rs.Rules, 1)
	assert.Equal(t, Builtin().Name, rs.Rules[0].Name)
	assert.Equal(t, empty, rs.Dir, "directory stays watchable")

	rs = Load(quietLogger(), nil)
	require.Len(t, rs.Rules, 1)
	assert.Empty(t, rs.Dir)
}

func TestLoad_BrokenRuleIsReported(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "broken.toml", "name = [\n")
	logger, hook := test.NewNullLogger()

	rs := Load(logger, []string{dir})

	assert.Equal(t, dir, rs.Dir)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, Builtin().Name, rs.Rules[0].Name)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			assert.Contains(t, e.Message, "Failed to load event rules '"+filepath.Join(dir, "broken.toml")+"'")
			warned = true
		}
	}
	assert.True(t, warned)
}
