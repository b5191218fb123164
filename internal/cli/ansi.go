// pattern: Functional Core
package cli

import "github.com/charmbracelet/x/ansi"

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansi.Strip(s)
}
