package nametransform

import (
	"fmt"
	"strings"
)

// IsValidName checks if `name` is a valid path segment
// (not empty, no null bytes or "/", not "." or "..").
func IsValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty input")
	case len(name) > NameMax:
		return fmt.Errorf("too long: %d bytes", len(name))
	case strings.ContainsAny(name, "\x00/"):
		return fmt.Errorf("contains forbidden bytes")
	case name == "." || name == "..":
		return fmt.Errorf(". and .. are forbidden names")
	}
	return nil
}
