package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGBA is a color with float components in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// White is the fallback color for unknown color references.
var White = RGBA{R: 1, G: 1, B: 1, A: 1}

// Colorful returns the opaque part of c as a colorful.Color.
func (c RGBA) Colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped()
}

// Hex returns c as "#rrggbb", ignoring alpha.
func (c RGBA) Hex() string {
	return c.Colorful().Hex()
}

// Over blends c with the given alpha multiplier over bg.
func (c RGBA) Over(bg RGBA, alpha float64) RGBA {
	a := clamp01(c.A * alpha)
	blended := bg.Colorful().BlendRgb(c.Colorful(), a)
	return RGBA{R: blended.R, G: blended.G, B: blended.B, A: 1}
}

// parseColor accepts [r, g, b, a] / [r, g, b] arrays and "#rrggbb" /
// "#rrggbbaa" strings.
func parseColor(v any) (RGBA, error) {
	switch val := v.(type) {
	case []any:
		return parseColorArray(val)
	case []float64:
		arr := make([]any, len(val))
		for i, f := range val {
			arr[i] = f
		}
		return parseColorArray(arr)
	case string:
		return parseHexColor(val)
	default:
		return RGBA{}, fmt.Errorf("unsupported color value %v", v)
	}
}

func parseColorArray(arr []any) (RGBA, error) {
	if len(arr) < 3 {
		return RGBA{}, fmt.Errorf("color needs at least 3 components, got %d", len(arr))
	}
	comps := [4]float64{0, 0, 0, 1}
	for i := 0; i < len(arr) && i < 4; i++ {
		f, ok := toFloat(arr[i])
		if !ok {
			return RGBA{}, fmt.Errorf("color component %d: not a number: %v", i, arr[i])
		}
		comps[i] = clamp01(f)
	}
	return RGBA{R: comps[0], G: comps[1], B: comps[2], A: comps[3]}, nil
}

func parseHexColor(s string) (RGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return RGBA{}, fmt.Errorf("not a hex color: %q", s)
	}
	alpha := 1.0
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid alpha in %q: %w", s, err)
		}
		alpha = float64(a) / 255.0
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGBA{}, err
	}
	return RGBA{R: c.R, G: c.G, B: c.B, A: alpha}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
