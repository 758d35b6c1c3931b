package colors

import "fmt"

// ColorFunc colorizes any value into a string. Passing one to a logging call switches the color used for the
// arguments that follow it.
type ColorFunc = func(s any) string

// Reset renders the input without any color. It is used to end a colored run of arguments in a log call.
func Reset(s any) string {
	return fmt.Sprintf("%v", s)
}

func Red(s any) string { return Colorize(s, RED) }

func RedBold(s any) string { return Colorize(Colorize(s, RED), BOLD) }

func Green(s any) string { return Colorize(s, GREEN) }

func GreenBold(s any) string { return Colorize(Colorize(s, GREEN), BOLD) }

func Yellow(s any) string { return Colorize(s, YELLOW) }

func YellowBold(s any) string { return Colorize(Colorize(s, YELLOW), BOLD) }

func Blue(s any) string { return Colorize(s, BLUE) }

func BlueBold(s any) string { return Colorize(Colorize(s, BLUE), BOLD) }

func Magenta(s any) string { return Colorize(s, MAGENTA) }

func Cyan(s any) string { return Colorize(s, CYAN) }

func CyanBold(s any) string { return Colorize(Colorize(s, CYAN), BOLD) }

func Bold(s any) string { return Colorize(s, BOLD) }

func DarkGray(s any) string { return Colorize(s, DARK_GRAY) }
