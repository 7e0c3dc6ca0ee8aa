package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ToFloat widens integer, float and numeric string bus values to float64.
// Variants are unwrapped.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case dbus.Variant:
		return ToFloat(n.Value())
	case *dbus.Variant:
		if n == nil {
			return 0, false
		}
		return ToFloat(n.Value())
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case byte:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders a bus value for display. Floats are rounded to whole
// numbers; variants are unwrapped.
func Stringify(v any) string {
	switch s := v.(type) {
	case dbus.Variant:
		return Stringify(s.Value())
	case *dbus.Variant:
		if s == nil {
			return ""
		}
		return Stringify(s.Value())
	case string:
		return s
	case dbus.ObjectPath:
		return string(s)
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return fmt.Sprintf("%.0f", s)
	case float32:
		return fmt.Sprintf("%.0f", s)
	case byte, int16, uint16, int32, uint32, int64, uint64, int, uint:
		return fmt.Sprintf("%d", s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// UPowerState maps a UPower device state number to its label.
func UPowerState(state uint32) string {
	switch state {
	case 1:
		return "charging"
	case 2:
		return "discharging"
	case 4:
		return "full"
	default:
		return "unknown"
	}
}

// FromBody extracts the leading string argument and the changed-property
// set from a signal body. A PropertiesChanged body (s, a{sv}, as) yields
// its changed dictionary; any other body yields its positional arguments
// keyed "arg0", "arg1", ...
func FromBody(body []any) (arg0 *string, changed map[string]dbus.Variant) {
	if len(body) > 0 {
		if s, ok := body[0].(string); ok {
			arg0 = &s
		}
	}

	if len(body) >= 2 && arg0 != nil {
		if props, ok := body[1].(map[string]dbus.Variant); ok {
			return arg0, props
		}
	}

	changed = make(map[string]dbus.Variant, len(body))
	for i, v := range body {
		if vv, ok := v.(dbus.Variant); ok {
			changed[fmt.Sprintf("arg%d", i)] = vv
			continue
		}
		changed[fmt.Sprintf("arg%d", i)] = dbus.MakeVariant(v)
	}
	return arg0, changed
}
