//go:build !windows

package colors

import "fmt"

// EnableColor is a no-op outside of Windows since ANSI escape codes are always available.
func EnableColor() {}

// Colorize wraps s in the ANSI code c, unless coloring was turned off with SetEnabled.
func Colorize(s any, c Color) string {
	if disabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
