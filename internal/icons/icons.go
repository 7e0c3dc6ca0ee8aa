// Package icons picks battery glyphs for signals whose icon is "auto".
package icons

// Style represents the icon style to use.
type Style string

const (
	StyleNerd    Style = "nerd"
	StyleUnicode Style = "unicode"
	StyleNone    Style = "none"
)

// Auto is the signal icon value that selects a glyph from the battery level.
const Auto = "auto"

// Icons holds the battery glyphs of one style, from empty to full.
type Icons struct {
	Levels   [5]string
	Charging string
}

var (
	nerdIcons = Icons{
		Levels: [5]string{
			"󰁺", // nf-md-battery_10
			"󰁼", // nf-md-battery_30
			"󰁾", // nf-md-battery_50
			"󰂀", // nf-md-battery_70
			"󰁹", // nf-md-battery
		},
		Charging: "󰂄", // nf-md-battery_charging
	}

	unicodeIcons = Icons{
		Levels:   [5]string{"🪫", "🪫", "🔋", "🔋", "🔋"},
		Charging: "⚡",
	}

	noneIcons = Icons{}
)

// ParseStyle maps a config value to a style. Unknown values are StyleNone.
func ParseStyle(s string) Style {
	switch Style(s) {
	case StyleNerd, StyleUnicode:
		return Style(s)
	default:
		return StyleNone
	}
}

// For returns the glyph set of style.
func For(style Style) Icons {
	switch style {
	case StyleNerd:
		return nerdIcons
	case StyleUnicode:
		return unicodeIcons
	default:
		return noneIcons
	}
}

// Battery returns the glyph for a battery at percentage. Charging wins
// over the level.
func Battery(style Style, percentage float64, charging bool) string {
	set := For(style)
	if charging && set.Charging != "" {
		return set.Charging
	}
	return set.Levels[level(percentage)]
}

func level(percentage float64) int {
	switch {
	case percentage <= 10:
		return 0
	case percentage <= 30:
		return 1
	case percentage <= 55:
		return 2
	case percentage <= 80:
		return 3
	default:
		return 4
	}
}
