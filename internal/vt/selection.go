package vt

import "strings"

// BufferPoint addresses a row in the combined scrollback+screen buffer,
// in absolute order (scrollback first, then the active screen).
type BufferPoint struct {
	Row int
}

// allLines returns the combined scrollback + active-screen lines in
// absolute order.
func (t *Terminal) allLines() []*line {
	if t.active == ScreenAlternate {
		return t.alternate.lines
	}
	combined := make([]*line, 0, len(t.scrollback)+len(t.primary.lines))
	combined = append(combined, t.scrollback...)
	combined = append(combined, t.primary.lines...)
	return combined
}

// SelectionText returns the text between two buffer points, scrollback
// and screen combined with absolute row ordering, skipping continuation
// cells, joined by "\n" (spec.md §4.4 "Selection").
func (t *Terminal) SelectionText(start, end BufferPoint) string {
	if end.Row < start.Row {
		start, end = end, start
	}
	lines := t.allLines()
	var out []string
	for r := start.Row; r <= end.Row && r < len(lines); r++ {
		if r < 0 {
			continue
		}
		out = append(out, lines[r].trimmedText())
	}
	return strings.Join(out, "\n")
}

// BufferTail returns the last n trimmed rows (or all, when n <= 0),
// with the absolute row index of the first returned row.
func (t *Terminal) BufferTail(n int) (lines []string, startRow int) {
	all := t.allLines()
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	start := len(all) - n
	for _, l := range all[start:] {
		lines = append(lines, l.trimmedText())
	}
	return lines, start
}
