// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"fmt"
	"strings"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// latexReplacer escapes the characters LaTeX treats specially. The
// replacer works in one pass, so the backslashes it inserts are not
// escaped again. Braces become commands: BibTeX counts \{ and \} when
// matching delimiters, and every entry must stay brace-balanced.
var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\textbraceleft{}`,
	`}`, `\textbraceright{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// EscapeLaTeX escapes s for use inside a braced BibTeX value.
func EscapeLaTeX(s string) string {
	return latexReplacer.Replace(s)
}

func escaper(mode types.EscapeMode) (func(string) string, error) {
	switch mode {
	case "", types.EscapeLaTeX:
		return EscapeLaTeX, nil
	case types.EscapeNone:
		return func(s string) string { return s }, nil
	default:
		return nil, fmt.Errorf("unknown escape mode %q (want %s or %s)", mode, types.EscapeLaTeX, types.EscapeNone)
	}
}
