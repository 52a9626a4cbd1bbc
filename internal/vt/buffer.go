package vt

// cell is the internal, mutable representation of one grid position.
type cell struct {
	glyph     string
	width     int
	continued bool
	style     Style
}

func blankCell() cell {
	return cell{glyph: " ", width: 1}
}

// line is one row of the grid plus a revision counter used to cache its
// trimmed rendering (spec.md §4.4 "Caching").
type line struct {
	cells       []cell
	revision    uint64
	cachedRev   uint64
	cachedText  string
	cachedRich  []RichCell
	cachedValid bool
}

func newLine(cols int) *line {
	l := &line{cells: make([]cell, cols)}
	for i := range l.cells {
		l.cells[i] = blankCell()
	}
	return l
}

func (l *line) touch() {
	l.revision++
	l.cachedValid = false
}

func (l *line) resize(cols int) {
	if cols == len(l.cells) {
		return
	}
	next := make([]cell, cols)
	for i := range next {
		next[i] = blankCell()
	}
	n := cols
	if len(l.cells) < n {
		n = len(l.cells)
	}
	copy(next[:n], l.cells[:n])
	l.cells = next
	l.touch()
}

func (l *line) trimmedText() string {
	if l.cachedValid && l.cachedRev == l.revision {
		return l.cachedText
	}
	l.rebuildCache()
	return l.cachedText
}

func (l *line) richLine() []RichCell {
	if l.cachedValid && l.cachedRev == l.revision {
		return l.cachedRich
	}
	l.rebuildCache()
	return l.cachedRich
}

func (l *line) rebuildCache() {
	rich := make([]RichCell, len(l.cells))
	end := -1
	for i, c := range l.cells {
		rich[i] = RichCell{Glyph: c.glyph, Width: c.width, Continued: c.continued, Style: c.style}
		if c.width > 0 && (c.glyph != " " || c.style != (Style{})) {
			end = i
		}
	}
	var text []byte
	for i := 0; i <= end; i++ {
		if l.cells[i].continued {
			continue
		}
		text = append(text, l.cells[i].glyph...)
	}
	l.cachedText = string(text)
	l.cachedRich = rich
	l.cachedRev = l.revision
	l.cachedValid = true
}

// screenBuffer is one of the two VT screens (primary or alternate).
type screenBuffer struct {
	lines []*line
	cols  int
}

func newScreenBuffer(rows, cols int) *screenBuffer {
	sb := &screenBuffer{cols: cols}
	sb.lines = make([]*line, rows)
	for i := range sb.lines {
		sb.lines[i] = newLine(cols)
	}
	return sb
}

func (sb *screenBuffer) rows() int { return len(sb.lines) }

func (sb *screenBuffer) at(row int) *line {
	return sb.lines[row]
}
