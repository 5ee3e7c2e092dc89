// Package display renders operation results for the terminal in table,
// json, yaml and compact formats, with color support detection.
package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color names a semantic output color
type Color int

const (
	ColorDefault Color = iota
	ColorSuccess
	ColorWarning
	ColorError
	ColorInfo
	ColorMuted
	ColorHeader
)

// ColorSystem applies semantic colors to text, degrading to plain output
// when the terminal does not support them
type ColorSystem struct {
	enabled  bool
	profile  termenv.Profile
	colorMap map[Color]*color.Color
}

// NewColorSystem creates a ColorSystem. Colors are active only when enabled
// is set and the terminal supports them.
func NewColorSystem(enabled bool) *ColorSystem {
	cs := &ColorSystem{
		enabled: enabled && detectColorSupport(),
		profile: termenv.ColorProfile(),
		colorMap: map[Color]*color.Color{
			ColorSuccess: color.New(color.FgGreen),
			ColorWarning: color.New(color.FgYellow),
			ColorError:   color.New(color.FgRed),
			ColorInfo:    color.New(color.FgCyan),
			ColorMuted:   color.New(color.FgHiBlack),
			ColorHeader:  color.New(color.FgWhite, color.Bold),
		},
	}
	if !cs.enabled {
		color.NoColor = true
	}
	return cs
}

// detectColorSupport checks if the terminal supports colors
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// Sprint returns text in the given semantic color
func (cs *ColorSystem) Sprint(clr Color, text string) string {
	if !cs.enabled {
		return text
	}
	if c, ok := cs.colorMap[clr]; ok {
		return c.Sprint(text)
	}
	return text
}

// Sprintf formats and colors in one step
func (cs *ColorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Sprint(clr, fmt.Sprintf(format, args...))
}

// Enabled reports whether colors are active
func (cs *ColorSystem) Enabled() bool {
	return cs.enabled
}
