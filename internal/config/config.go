package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/icons"
)

const (
	appName        = "inno"
	configFileName = "inno.toml"

	DefaultFontSize = 24.0
	DefaultIconSize = 24.0
	DefaultFormat   = "{message} {percent}%"
	DefaultDuration = 5 * time.Second
)

// ErrNotFound is returned by Load when no config file exists. The
// returned config then holds the defaults.
var ErrNotFound = errors.New("config file not found in any of the search paths")

type BatteryMode int

const (
	BatteryFirst BatteryMode = iota
	BatteryCombined
	BatteryHighest
	BatteryLowest
)

func ParseBatteryMode(s string) BatteryMode {
	switch strings.ToLower(s) {
	case "combined":
		return BatteryCombined
	case "highest":
		return BatteryHighest
	case "lowest":
		return BatteryLowest
	default:
		return BatteryFirst
	}
}

func (m BatteryMode) String() string {
	switch m {
	case BatteryCombined:
		return "combined"
	case BatteryHighest:
		return "highest"
	case BatteryLowest:
		return "lowest"
	default:
		return "first"
	}
}

// Signal maps a percentage/state condition to what gets displayed.
type Signal struct {
	Message     string
	Icon        string
	IconSize    float64
	Color       RGBA
	Threshold   float64
	StateFilter string // lowercased; "any" matches every state
	Animation   animation.Kind
	Duration    time.Duration
	Sound       string // empty when no sound is configured
}

type Config struct {
	Font         string
	FontSize     float64
	FontSlant    string // "normal", "italic" or "oblique"
	FontWeight   string // "normal" or "bold"
	Anchor       Anchor
	TextColor    RGBA
	BgColor      RGBA
	BorderRadius float64
	Gradient     bool
	Format       string
	IconStyle    icons.Style // glyph set for signals with icon = "auto"
	BatteryMode  BatteryMode
	Renderer     string // "notify" or "console"
	LogLevel     string
	MetricsAddr  string // empty disables the metrics endpoint
	Signals      []Signal

	// Path is the file the config was loaded from, empty for defaults.
	Path string
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Font:       "monospace",
		FontSize:   DefaultFontSize,
		FontSlant:  "normal",
		FontWeight: "normal",
		Anchor:     Anchor{H: HCenter, V: VBottom, MarginH: DefaultMargin, MarginV: DefaultMargin},
		TextColor:  White,
		BgColor:    RGBA{A: 0.6},
		Format:     DefaultFormat,
		IconStyle:  icons.StyleUnicode,
		Renderer:   "notify",
		LogLevel:   "info",
	}
}

// fileConfig mirrors the TOML document. Pointers distinguish unset keys
// from zero values.
type fileConfig struct {
	General    generalConfig    `koanf:"general"`
	Appearance appearanceConfig `koanf:"appearance"`
	Colors     map[string]any   `koanf:"colors"`
	Signal     []signalConfig   `koanf:"signal"`
}

type generalConfig struct {
	Font        *string  `koanf:"font"`
	FontSize    *float64 `koanf:"font_size"`
	FontSlant   *string  `koanf:"font_slant"`
	FontWeight  *string  `koanf:"font_weight"`
	Position    *string  `koanf:"position"`
	Format      *string  `koanf:"format"`
	IconStyle   *string  `koanf:"icon_style"`
	BatteryMode *string  `koanf:"battery_mode"`
	Renderer    *string  `koanf:"renderer"`
	LogLevel    *string  `koanf:"log_level"`
	MetricsAddr *string  `koanf:"metrics_addr"`
}

type appearanceConfig struct {
	TextColor    any      `koanf:"text_color"`
	BgColor      any      `koanf:"bg_color"`
	BorderRadius *float64 `koanf:"border_radius"`
	Gradient     *bool    `koanf:"gradient"`
}

type signalConfig struct {
	Message   string   `koanf:"message"`
	Icon      string   `koanf:"icon"`
	IconSize  *float64 `koanf:"icon_size"`
	Color     string   `koanf:"color"`
	Threshold float64  `koanf:"threshold"`
	State     string   `koanf:"state"`
	Animation string   `koanf:"animation"`
	Duration  *uint64  `koanf:"duration"`
	Sound     string   `koanf:"sound"`
}

// Load reads the config at path, or the first file found in
// SearchPaths when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Find()
		if path == "" {
			return Default(), ErrNotFound
		}
	}
	return LoadFile(path)
}

// LoadFile reads and parses a single TOML config file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg, err := fc.build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func (fc fileConfig) build() (*Config, error) {
	cfg := Default()

	g := fc.General
	if g.Font != nil {
		cfg.Font = *g.Font
	}
	if g.FontSize != nil {
		cfg.FontSize = *g.FontSize
	}
	if g.FontSlant != nil {
		cfg.FontSlant = parseFontSlant(*g.FontSlant)
	}
	if g.FontWeight != nil {
		cfg.FontWeight = parseFontWeight(*g.FontWeight)
	}
	if g.Position != nil {
		cfg.Anchor = ParseAnchor(*g.Position)
	}
	if g.Format != nil {
		cfg.Format = *g.Format
	}
	if g.IconStyle != nil {
		cfg.IconStyle = icons.ParseStyle(*g.IconStyle)
	}
	if g.BatteryMode != nil {
		cfg.BatteryMode = ParseBatteryMode(*g.BatteryMode)
	}
	if g.Renderer != nil {
		cfg.Renderer = strings.ToLower(*g.Renderer)
	}
	if g.LogLevel != nil {
		cfg.LogLevel = *g.LogLevel
	}
	if g.MetricsAddr != nil {
		cfg.MetricsAddr = *g.MetricsAddr
	}

	a := fc.Appearance
	if a.TextColor != nil {
		c, err := parseColor(a.TextColor)
		if err != nil {
			return nil, fmt.Errorf("appearance.text_color: %w", err)
		}
		cfg.TextColor = c
	}
	if a.BgColor != nil {
		c, err := parseColor(a.BgColor)
		if err != nil {
			return nil, fmt.Errorf("appearance.bg_color: %w", err)
		}
		cfg.BgColor = c
	}
	if a.BorderRadius != nil {
		cfg.BorderRadius = *a.BorderRadius
	}
	if a.Gradient != nil {
		cfg.Gradient = *a.Gradient
	}

	colors := make(map[string]RGBA, len(fc.Colors))
	for name, v := range fc.Colors {
		c, err := parseColor(v)
		if err != nil {
			return nil, fmt.Errorf("colors.%s: %w", name, err)
		}
		colors[name] = c
	}

	cfg.Signals = make([]Signal, 0, len(fc.Signal))
	for _, sc := range fc.Signal {
		cfg.Signals = append(cfg.Signals, sc.build(colors))
	}

	return cfg, nil
}

func (sc signalConfig) build(colors map[string]RGBA) Signal {
	s := Signal{
		Message:     sc.Message,
		Icon:        sc.Icon,
		IconSize:    DefaultIconSize,
		Color:       lookupColor(sc.Color, colors),
		Threshold:   sc.Threshold,
		StateFilter: strings.ToLower(sc.State),
		Animation:   animation.ParseKind(sc.Animation),
		Duration:    DefaultDuration,
	}
	if sc.IconSize != nil {
		s.IconSize = *sc.IconSize
	}
	if sc.Duration != nil {
		s.Duration = time.Duration(*sc.Duration) * time.Second
	}
	if sc.Sound != "" {
		s.Sound = expandPath(sc.Sound)
	}
	return s
}

func lookupColor(ref string, colors map[string]RGBA) RGBA {
	if c, ok := colors[ref]; ok {
		return c
	}
	if c, err := parseHexColor(ref); err == nil {
		return c
	}
	return White
}

func parseFontSlant(s string) string {
	switch strings.ToLower(s) {
	case "italic":
		return "italic"
	case "oblique":
		return "oblique"
	default:
		return "normal"
	}
}

func parseFontWeight(s string) string {
	if strings.EqualFold(s, "bold") {
		return "bold"
	}
	return "normal"
}

// Find returns the first existing config file from SearchPaths, or "".
func Find() string {
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SearchPaths lists candidate config files, highest priority first.
func SearchPaths() []string {
	return candidatePaths(configFileName)
}

// EventDirs lists candidate event rule directories, highest priority first.
func EventDirs() []string {
	return candidatePaths("events")
}

func candidatePaths(name string) []string {
	paths := []string{}

	// 1. ./<name> and ../<name>
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(cwd, name),
			filepath.Join(filepath.Dir(cwd), name),
		)
	}

	// 2. $XDG_CONFIG_HOME/inno/<name>
	paths = append(paths, filepath.Join(xdg.ConfigHome, appName, name))

	// 3. $XDG_CONFIG_DIRS/inno/<name>
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appName, name))
	}

	return paths
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
