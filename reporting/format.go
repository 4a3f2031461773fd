package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
)

// formatDuration renders durations the way people read them: whole
// milliseconds below a second, and tenths of seconds above.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Truncate(time.Second).String()
	}
}

// palette colors output unless colors are disabled.
type palette struct {
	disabled bool
}

func (p palette) paint(c text.Colors, s string) string {
	if p.disabled {
		return s
	}
	return c.Sprint(s)
}

func (p palette) green(s string) string  { return p.paint(text.Colors{text.FgGreen}, s) }
func (p palette) red(s string) string    { return p.paint(text.Colors{text.FgRed}, s) }
func (p palette) yellow(s string) string { return p.paint(text.Colors{text.FgYellow}, s) }
func (p palette) cyan(s string) string   { return p.paint(text.Colors{text.FgCyan}, s) }
func (p palette) faint(s string) string  { return p.paint(text.Colors{text.Faint}, s) }
func (p palette) bold(s string) string   { return p.paint(text.Colors{text.Bold}, s) }

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
