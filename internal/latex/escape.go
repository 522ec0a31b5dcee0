package latex

import "strings"

var escaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`%`, `\%`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
	"\r\n", " ",
	"\n", " ",
)

// Escape makes plain text safe to place inside a LaTeX document.
func Escape(s string) string {
	return escaper.Replace(s)
}
