package astros

import (
	"fmt"
	"io"
)

// FormatAstronautCraft renders the greeting line for p. Only the first
// greeting is used; with none, DefaultGreeting applies.
func FormatAstronautCraft(p Person, greeting ...string) (string, error) {
	craft, err := p.Craft()
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	if err != nil {
		return "", err
	}
	g := DefaultGreeting
	if len(greeting) > 0 {
		g = greeting[0]
	}
	return fmt.Sprintf("%s is currently in space flying on the %s! %s", name, craft, g), nil
}

func PrintAstronautCraft(w io.Writer, p Person, greeting ...string) error {
	line, err := FormatAstronautCraft(p, greeting...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, line)
	return err
}
