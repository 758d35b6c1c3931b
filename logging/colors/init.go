package colors

// disabled turns every ColorFunc into Reset, e.g. when output is piped or --no-color is set.
var disabled bool

func init() {
	EnableColor()
}

// SetEnabled toggles ANSI coloring for all ColorFunc helpers.
func SetEnabled(enabled bool) {
	disabled = !enabled
}
