package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"

	"github.com/llehouerou/inno/internal/animation"
	"github.com/llehouerou/inno/internal/config"
)

const (
	clearLine = "\r" + ansi.EraseEntireLine

	// pixelsPerCell converts animation offsets to terminal columns.
	pixelsPerCell = 10.0
)

// Console draws the notification as a single styled line that is
// redrawn in place. Useful on a terminal and for debugging rules.
type Console struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	events   chan SurfaceEvent

	mu     sync.Mutex
	cfg    *config.Config
	last   string
	closed bool
}

// NewConsole returns a renderer writing to out.
func NewConsole(out io.Writer, cfg *config.Config) *Console {
	c := &Console{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		cfg:      cfg,
		events:   make(chan SurfaceEvent, 4),
	}
	c.events <- SurfaceEvent{Kind: Configured}
	return c
}

func (c *Console) Configure(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Console) Render(text string, sig *config.Signal, vs animation.VisualState) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if Invisible(vs) {
		return 1, 1, c.write(clearLine)
	}

	line := c.frame(text, sig, vs)
	if err := c.write(clearLine + line); err != nil {
		return 0, 0, err
	}
	return ansi.StringWidth(line), 1, nil
}

// frame builds the styled line for one visible frame.
func (c *Console) frame(text string, sig *config.Signal, vs animation.VisualState) string {
	bg := c.cfg.BgColor
	fg := textColor(c.cfg, sig).Over(bg, vs.Alpha)

	var body string
	if c.cfg.Gradient && sig != nil {
		from := c.cfg.TextColor.Over(bg, vs.Alpha)
		body = c.gradient(text, from.Colorful(), fg.Colorful())
	} else {
		body = c.renderer.NewStyle().Foreground(lipgloss.Color(fg.Hex())).Render(text)
	}

	style := c.renderer.NewStyle().Padding(0, 1)
	if bg.A > 0 {
		style = style.Background(lipgloss.Color(bg.Hex()))
	}
	if c.cfg.FontWeight == "bold" {
		style = style.Bold(true)
	}
	if c.cfg.FontSlant != "normal" && c.cfg.FontSlant != "" {
		style = style.Italic(true)
	}

	indent := int(math.Round(math.Max(vs.OffsetX, 0) / pixelsPerCell))
	return strings.Repeat(" ", indent) + style.Render(body)
}

// gradient colors each grapheme, blending from -> to in HCL space.
func (c *Console) gradient(text string, from, to colorful.Color) string {
	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}
	if len(clusters) < 2 {
		return c.renderer.NewStyle().Foreground(lipgloss.Color(to.Hex())).Render(text)
	}

	var b strings.Builder
	for i, cluster := range clusters {
		t := float64(i) / float64(len(clusters)-1)
		col := from.BlendHcl(to, t).Clamped()
		b.WriteString(c.renderer.NewStyle().Foreground(lipgloss.Color(col.Hex())).Render(cluster))
	}
	return b.String()
}

func (c *Console) Hide() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(clearLine)
}

// write skips output identical to the previous write.
func (c *Console) write(s string) error {
	if c.closed {
		return ErrClosed
	}
	if s == c.last {
		return nil
	}
	if _, err := io.WriteString(c.out, s); err != nil {
		c.closed = true
		err = fmt.Errorf("%w: %w", ErrClosed, err)
		select {
		case c.events <- SurfaceEvent{Kind: Closed, Err: err}:
		default:
		}
		return err
	}
	c.last = s
	return nil
}

func (c *Console) Events() <-chan SurfaceEvent {
	return c.events
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	err := c.write(clearLine)
	c.closed = true
	return err
}
