package media

import "strings"

// wrapText greedily packs words into lines of at most width runes, splitting words that are longer.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}

	var lines []string
	var current []rune
	for _, word := range strings.Fields(s) {
		runes := []rune(word)
		for len(runes) > 0 {
			sep := 0
			if len(current) > 0 {
				sep = 1
			}
			if len(current)+sep+len(runes) <= width {
				if sep == 1 {
					current = append(current, ' ')
				}
				current = append(current, runes...)
				runes = nil
				continue
			}
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = current[:0]
				continue
			}
			current = append(current, runes[:width]...)
			runes = runes[width:]
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
