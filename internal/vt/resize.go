package vt

// Resize implements spec.md §4.4 "Resize": preserves content, clamps the
// cursor, reinitializes tab stops, resets an invalid scroll region, and
// clears pending-wrap if the cursor is no longer at the right margin.
func (t *Terminal) Resize(rows, cols int) {
	if rows == t.rows && cols == t.cols {
		return
	}
	t.resizeScreen(t.primary, rows, cols)
	t.resizeScreen(t.alternate, rows, cols)
	t.rows, t.cols = rows, cols

	t.cursorRow = clamp(t.cursorRow, 0, rows-1)
	t.cursorCol = clamp(t.cursorCol, 0, cols-1)

	t.resetTabStops()

	if t.scrollTop < 0 || t.scrollBottom >= rows || t.scrollTop >= t.scrollBottom {
		t.scrollTop, t.scrollBottom = 0, rows-1
	}

	if t.cursorCol != cols-1 {
		t.pendingWrap = false
	}
}

func (t *Terminal) resizeScreen(sb *screenBuffer, rows, cols int) {
	for _, l := range sb.lines {
		l.resize(cols)
	}
	if rows > len(sb.lines) {
		for len(sb.lines) < rows {
			sb.lines = append(sb.lines, newLine(cols))
		}
	} else if rows < len(sb.lines) {
		sb.lines = sb.lines[:rows]
	}
	sb.cols = cols
}
