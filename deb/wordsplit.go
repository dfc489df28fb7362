package deb

import "strings"

// descriptionWidth is the maximum length of an extended description
// line before the leading space.
const descriptionWidth = 79

// foldDescription rewraps free-form text into control-file continuation
// lines: words are wrapped at the width limit, and paragraph breaks
// (blank lines) become a lone dot.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-description
func foldDescription(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			out = append(out, ".")
			continue
		}
		out = append(out, wordWrap(line, descriptionWidth)...)
	}
	return out
}

// wordWrap splits a single line into chunks no longer than width,
// breaking only at spaces. A word longer than width stays intact on its
// own line.
func wordWrap(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{"."}
	}
	var out []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > width {
			out = append(out, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(out, cur)
}
