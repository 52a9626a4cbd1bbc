package vt

import (
	"fmt"
)

func (t *Terminal) feedCSI(r rune) {
	switch {
	case r >= '0' && r <= '9':
		t.curParam = t.curParam*10 + int(r-'0')
		t.hasParam = true
		return
	case r == ';':
		t.params = append(t.params, t.curParam)
		t.curParam = 0
		t.hasParam = false
		return
	case r == '?' || r == '>' || r == '=':
		t.private = byte(r)
		return
	case r == ' ':
		t.intermediate = append(t.intermediate, ' ')
		return
	}
	// Final byte.
	if t.hasParam || len(t.params) > 0 {
		t.params = append(t.params, t.curParam)
	}
	t.dispatchCSI(r)
	t.state = stateNormal
}

func (t *Terminal) param(i, def int) int {
	if i >= len(t.params) {
		return def
	}
	if t.params[i] == 0 {
		return def
	}
	return t.params[i]
}

func (t *Terminal) rawParam(i, def int) int {
	if i >= len(t.params) {
		return def
	}
	return t.params[i]
}

func (t *Terminal) dispatchCSI(final rune) {
	if len(t.intermediate) > 0 && t.intermediate[len(t.intermediate)-1] == ' ' && final == 'q' {
		t.decscusr(t.param(0, 0))
		return
	}
	if t.private == '?' {
		t.dispatchPrivateCSI(final)
		return
	}
	if t.private == '>' {
		// Kitty keyboard protocol (CSI > Pn u) and its CSI > Pn m
		// counterpart are queries/pushes we don't implement; swallow
		// them rather than misreading 'u'/'m' as cursor-restore/SGR.
		// CSI > c (secondary device attributes) is still answered.
		if final == 'c' {
			t.replyDA()
		}
		return
	}
	switch final {
	case 'A':
		t.moveCursor(-t.param(0, 1), 0)
	case 'B':
		t.moveCursor(t.param(0, 1), 0)
	case 'C':
		t.moveCursor(0, t.param(0, 1))
	case 'D':
		t.moveCursor(0, -t.param(0, 1))
	case 'G':
		t.cursorCol = clamp(t.param(0, 1)-1, 0, t.cols-1)
		t.pendingWrap = false
	case 'H', 'f':
		t.cursorTo(t.param(0, 1)-1, t.param(1, 1)-1)
	case 'd':
		t.cursorRow = clamp(t.param(0, 1)-1, 0, t.rows-1)
	case 's':
		t.savedRow, t.savedCol = t.cursorRow, t.cursorCol
	case 'u':
		t.cursorRow, t.cursorCol = t.savedRow, t.savedCol
	case 'r':
		t.setScrollRegion(t.rawParam(0, 1), t.rawParam(1, t.rows))
	case 'm':
		t.applySGR()
	case 'J':
		t.eraseDisplay(t.param(0, 0))
	case 'K':
		t.eraseLine(t.param(0, 0))
	case '@':
		t.insertChars(t.param(0, 1))
	case 'P':
		t.deleteChars(t.param(0, 1))
	case 'L':
		t.insertLines(t.param(0, 1))
	case 'M':
		t.deleteLines(t.param(0, 1))
	case 'S':
		t.scrollUp(t.param(0, 1))
	case 'T':
		t.scrollDown(t.param(0, 1))
	case 'c':
		t.replyDA()
	case 'n':
		t.replyDSR(t.param(0, 0))
	case 't':
		t.replyWinOps(t.param(0, 0))
	}
}

func (t *Terminal) dispatchPrivateCSI(final rune) {
	switch final {
	case 'h', 'l':
		on := final == 'h'
		for _, p := range t.params {
			t.setPrivateMode(p, on)
		}
	case 'u':
		// Kitty keyboard query (CSI ? u) and DA-style queries share the
		// private '?' marker; only the bare query has no params.
		if len(t.params) == 0 {
			t.replyRaw([]byte("\x1b[?0u"))
		}
	}
}

func (t *Terminal) setPrivateMode(mode int, on bool) {
	switch mode {
	case 6:
		t.originMode = on
	case 25:
		t.cursorVisible = on
	case 1000:
		t.modes.MouseX10 = on
	case 1002:
		t.modes.MouseButtonEvent = on
	case 1003:
		t.modes.MouseAnyEvent = on
	case 1004:
		t.modes.FocusTracking = on
	case 1006:
		t.modes.MouseSGR = on
	case 2004:
		t.modes.BracketedPaste = on
	case 1047, 1049:
		t.switchScreen(on, mode == 1049)
	case 1048:
		if on {
			t.savedRow, t.savedCol = t.cursorRow, t.cursorCol
		} else {
			t.cursorRow, t.cursorCol = t.savedRow, t.savedCol
		}
	}
}

func (t *Terminal) switchScreen(toAlt, saveCursor bool) {
	if toAlt && t.active == ScreenPrimary {
		if saveCursor {
			t.savedRow, t.savedCol = t.cursorRow, t.cursorCol
		}
		t.active = ScreenAlternate
		t.alternate = newScreenBuffer(t.rows, t.cols)
	} else if !toAlt && t.active == ScreenAlternate {
		t.active = ScreenPrimary
		if saveCursor {
			t.cursorRow, t.cursorCol = t.savedRow, t.savedCol
		}
	}
}

func (t *Terminal) moveCursor(dRow, dCol int) {
	t.cursorRow = clamp(t.cursorRow+dRow, t.scrollRowMin(), t.scrollRowMax())
	t.cursorCol = clamp(t.cursorCol+dCol, 0, t.cols-1)
	t.pendingWrap = false
}

func (t *Terminal) scrollRowMin() int {
	if t.originMode {
		return t.scrollTop
	}
	return 0
}

func (t *Terminal) scrollRowMax() int {
	if t.originMode {
		return t.scrollBottom
	}
	return t.rows - 1
}

func (t *Terminal) cursorTo(row, col int) {
	if t.originMode {
		row += t.scrollTop
	}
	t.cursorRow = clamp(row, 0, t.rows-1)
	t.cursorCol = clamp(col, 0, t.cols-1)
	t.pendingWrap = false
}

func (t *Terminal) setScrollRegion(top, bottom int) {
	top--
	bottom--
	if top < 0 || bottom >= t.rows || top >= bottom {
		t.scrollTop, t.scrollBottom = 0, t.rows-1
		return
	}
	t.scrollTop, t.scrollBottom = top, bottom
	t.cursorRow, t.cursorCol = t.scrollTop, 0
}

func (t *Terminal) scrollDown(n int) {
	sb := t.screen()
	for i := 0; i < n; i++ {
		copy(sb.lines[t.scrollTop+1:t.scrollBottom+1], sb.lines[t.scrollTop:t.scrollBottom])
		sb.lines[t.scrollTop] = newLine(t.cols)
	}
}

func (t *Terminal) eraseDisplay(mode int) {
	sb := t.screen()
	switch mode {
	case 0:
		t.eraseLine(0)
		for r := t.cursorRow + 1; r < t.rows; r++ {
			sb.lines[r] = newLine(t.cols)
		}
	case 1:
		t.eraseLine(1)
		for r := 0; r < t.cursorRow; r++ {
			sb.lines[r] = newLine(t.cols)
		}
	case 2, 3:
		for r := 0; r < t.rows; r++ {
			sb.lines[r] = newLine(t.cols)
		}
	}
}

func (t *Terminal) eraseLine(mode int) {
	row := t.screen().at(t.cursorRow)
	switch mode {
	case 0:
		for c := t.cursorCol; c < t.cols; c++ {
			row.cells[c] = blankCell()
		}
	case 1:
		for c := 0; c <= t.cursorCol; c++ {
			row.cells[c] = blankCell()
		}
	case 2:
		for c := 0; c < t.cols; c++ {
			row.cells[c] = blankCell()
		}
	}
	row.touch()
}

func (t *Terminal) insertChars(n int) {
	row := t.screen().at(t.cursorRow)
	if t.cursorCol >= t.cols {
		return
	}
	copy(row.cells[t.cursorCol+n:], row.cells[t.cursorCol:t.cols-n])
	for c := t.cursorCol; c < t.cursorCol+n && c < t.cols; c++ {
		row.cells[c] = blankCell()
	}
	row.touch()
}

func (t *Terminal) deleteChars(n int) {
	row := t.screen().at(t.cursorRow)
	if n > t.cols-t.cursorCol {
		n = t.cols - t.cursorCol
	}
	copy(row.cells[t.cursorCol:], row.cells[t.cursorCol+n:])
	for c := t.cols - n; c < t.cols; c++ {
		row.cells[c] = blankCell()
	}
	row.touch()
}

func (t *Terminal) insertLines(n int) {
	sb := t.screen()
	if t.cursorRow < t.scrollTop || t.cursorRow > t.scrollBottom {
		return
	}
	for i := 0; i < n; i++ {
		copy(sb.lines[t.cursorRow+1:t.scrollBottom+1], sb.lines[t.cursorRow:t.scrollBottom])
		sb.lines[t.cursorRow] = newLine(t.cols)
	}
}

func (t *Terminal) deleteLines(n int) {
	sb := t.screen()
	if t.cursorRow < t.scrollTop || t.cursorRow > t.scrollBottom {
		return
	}
	for i := 0; i < n; i++ {
		copy(sb.lines[t.cursorRow:t.scrollBottom], sb.lines[t.cursorRow+1:t.scrollBottom+1])
		sb.lines[t.scrollBottom] = newLine(t.cols)
	}
}

func (t *Terminal) decscusr(p int) {
	switch p {
	case 0, 1:
		t.cursorShape, t.cursorBlink = ShapeBlock, true
	case 2:
		t.cursorShape, t.cursorBlink = ShapeBlock, false
	case 3:
		t.cursorShape, t.cursorBlink = ShapeUnderline, true
	case 4:
		t.cursorShape, t.cursorBlink = ShapeUnderline, false
	case 5:
		t.cursorShape, t.cursorBlink = ShapeBar, true
	case 6:
		t.cursorShape, t.cursorBlink = ShapeBar, false
	}
}

func (t *Terminal) replyDA() {
	if t.private == '>' {
		t.replyRaw([]byte("\x1b[>1;10;0c"))
		return
	}
	t.replyRaw([]byte("\x1b[?62;4;6;22c"))
}

func (t *Terminal) replyDSR(code int) {
	switch code {
	case 5:
		t.replyRaw([]byte("\x1b[0n"))
	case 6:
		t.replyRaw([]byte(fmt.Sprintf("\x1b[%d;%dR", t.cursorRow+1, t.cursorCol+1)))
	}
}

func (t *Terminal) replyWinOps(op int) {
	const cellPxW, cellPxH = 8, 16
	switch op {
	case 14:
		t.replyRaw([]byte(fmt.Sprintf("\x1b[4;%d;%dt", t.rows*cellPxH, t.cols*cellPxW)))
	case 16:
		t.replyRaw([]byte(fmt.Sprintf("\x1b[6;%d;%dt", cellPxH, cellPxW)))
	case 18:
		t.replyRaw([]byte(fmt.Sprintf("\x1b[8;%d;%dt", t.rows, t.cols)))
	}
}

func (t *Terminal) replyRaw(p []byte) {
	if t.replyWriter != nil {
		t.replyWriter.WriteReply(p)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
