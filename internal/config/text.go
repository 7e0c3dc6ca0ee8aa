package config

import (
	"fmt"
	"strings"

	"github.com/llehouerou/inno/internal/icons"
)

// DisplayText fills the format template with the signal's icon and message
// and the percentage rounded to a whole number. state is the observed
// battery state and picks the glyph for an automatic icon.
func (c *Config) DisplayText(sig *Signal, percentage float64, state string) string {
	format := c.Format
	if format == "" {
		format = DefaultFormat
	}
	var icon, message string
	if sig != nil {
		icon, message = sig.Icon, sig.Message
		if icon == icons.Auto {
			icon = icons.Battery(c.IconStyle, percentage, strings.EqualFold(state, "charging"))
		}
	}
	r := strings.NewReplacer(
		"{icon}", icon,
		"{message}", message,
		"{percent}", fmt.Sprintf("%.0f", percentage),
	)
	return strings.TrimSpace(r.Replace(format))
}
