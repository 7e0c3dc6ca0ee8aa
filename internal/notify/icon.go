package notify

import (
	"os"
	"path/filepath"
	"strings"
)

// SplitIcon decides how a configured icon is shown. File paths (absolute,
// "~/" or "./" prefixed) that exist become the notification image; anything
// else is a glyph prefixed to the summary text.
func SplitIcon(icon string) (image, glyph string) {
	icon = strings.TrimSpace(icon)
	if icon == "" {
		return "", ""
	}
	if !looksLikePath(icon) {
		return "", icon
	}

	path := icon
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", ""
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ""
	}
	if _, err := os.Stat(abs); err != nil {
		return "", ""
	}
	return abs, ""
}

func looksLikePath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~/") || strings.HasPrefix(s, "./")
}
