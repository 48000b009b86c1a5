package textnorm

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reAnySpace   = regexp.MustCompile(`\s+`)
)

// invisible characters that email templates use as preheader padding
var invisibles = strings.NewReplacer(
	"\u00a0", " ",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
	"\u034f", "",
	"\u00ad", "",
)

// CollapseWhitespace keeps line breaks, trims every line and allows at most one
// blank line in a row.
func CollapseWhitespace(s string) string {
	if s == "" {
		return s
	}
	s = invisibles.Replace(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// inline collapses every whitespace run, newlines included, to one space.
func inline(s string) string {
	return strings.TrimSpace(reAnySpace.ReplaceAllString(invisibles.Replace(s), " "))
}
