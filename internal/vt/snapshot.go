package vt

// Snapshot renders the current state into a SnapshotFrame and fills in
// frameHash. SnapshotNoHash produces the same frame without paying for
// the digest, for callers that only need the rendered content.
func (t *Terminal) Snapshot() SnapshotFrame {
	f := t.render()
	f.FrameHash = frameHash(&f)
	return f
}

func (t *Terminal) SnapshotNoHash() SnapshotFrame {
	return t.render()
}

func (t *Terminal) render() SnapshotFrame {
	sb := t.screen()
	lines := make([]string, t.rows)
	rich := make([][]RichCell, t.rows)
	for r := 0; r < t.rows; r++ {
		l := sb.at(r)
		lines[r] = l.trimmedText()
		rich[r] = l.richLine()
	}

	return SnapshotFrame{
		Rows:         t.rows,
		Cols:         t.cols,
		ActiveScreen: t.active,
		Modes:        t.modes,
		Cursor: Cursor{
			Row:      t.cursorRow,
			Col:      t.cursorCol,
			Visible:  t.cursorVisible,
			Shape:    t.cursorShape,
			Blinking: t.cursorBlink,
		},
		Viewport: Viewport{
			Top:          t.viewportTop,
			TotalRows:    len(t.scrollback) + t.rows,
			FollowOutput: t.followOutput,
		},
		Lines:     lines,
		RichLines: rich,
	}
}

// ScrollViewport moves the consumer's viewport by delta rows, clamping
// to the combined buffer, and re-follows output once scrolled to the
// bottom (spec.md §4.4 "Scrollback").
func (t *Terminal) ScrollViewport(delta int) {
	total := len(t.scrollback) + t.rows
	t.viewportTop = clamp(t.viewportTop+delta, 0, max0(total-t.rows))
	t.followOutput = t.viewportTop >= max0(total-t.rows)
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
