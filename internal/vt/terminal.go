package vt

import (
	"unicode"

	"github.com/mattn/go-runewidth"
)

type parserState int

const (
	stateNormal parserState = iota
	stateEsc
	stateEscIntermediate
	stateCSI
	stateOSC
	stateOSCEsc
	stateDCS
	stateDCSEsc
)

// QueryReplyWriter is satisfied by whatever owns the PTY write side; the
// Snapshot Oracle calls it synchronously from Write when a query needs a
// scripted reply (spec.md §4.6).
type QueryReplyWriter interface {
	WriteReply(p []byte)
}

// Terminal is the Snapshot Oracle's mutable state: two screens, cursor,
// modes, palette, scroll region, and the pending escape-sequence parser.
type Terminal struct {
	rows, cols int

	primary     *screenBuffer
	alternate   *screenBuffer
	active      Screen
	scrollback  []*line
	scrollbackLimit int

	cursorRow, cursorCol int
	savedRow, savedCol   int
	pendingWrap          bool

	cursorVisible bool
	cursorShape   CursorShape
	cursorBlink   bool

	style Style

	originMode   bool
	scrollTop    int
	scrollBottom int
	tabStops     []bool

	modes Modes

	palette *paletteTable
	fgOverride, bgOverride, cursorOverride ColorRef

	viewportTop    int
	followOutput   bool

	state       parserState
	intermediate []byte
	params      []int
	curParam    int
	hasParam    bool
	private     byte
	strBuf      []byte

	replyWriter QueryReplyWriter
	onUnhandledQuery func(kind string, raw string)
}

// New constructs a Terminal with the given dimensions and a bounded
// scrollback (spec.md §4.4 "Scrollback").
func New(rows, cols, scrollbackLimit int) *Terminal {
	t := &Terminal{
		rows: rows, cols: cols,
		primary:   newScreenBuffer(rows, cols),
		alternate: newScreenBuffer(rows, cols),
		active:    ScreenPrimary,
		scrollbackLimit: scrollbackLimit,
		cursorVisible: true,
		cursorShape:   ShapeBlock,
		palette:       newPaletteTable(),
		followOutput:  true,
		scrollBottom:  rows - 1,
	}
	t.resetTabStops()
	return t
}

// SetReplyWriter registers the sink for scripted query replies.
func (t *Terminal) SetReplyWriter(w QueryReplyWriter) { t.replyWriter = w }

// SetDefaultColors seeds the fg/bg/cursor OSC 10/11/12 query responses
// from configuration (spec.md §4.5 handshake), before any OSC 10/11/12
// set sequence overrides them.
func (t *Terminal) SetDefaultColors(fg, bg, cursor ColorRef) {
	t.fgOverride, t.bgOverride, t.cursorOverride = fg, bg, cursor
}

// SetUnhandledQueryHook registers the observer for queries with no
// scripted reply (spec.md §4.6 "Unknown queries are observed").
func (t *Terminal) SetUnhandledQueryHook(fn func(kind string, raw string)) {
	t.onUnhandledQuery = fn
}

func (t *Terminal) resetTabStops() {
	t.tabStops = make([]bool, t.cols)
	for i := 0; i < t.cols; i += 8 {
		t.tabStops[i] = true
	}
}

func (t *Terminal) screen() *screenBuffer {
	if t.active == ScreenPrimary {
		return t.primary
	}
	return t.alternate
}

// Write feeds a chunk of raw PTY output into the state machine.
func (t *Terminal) Write(p []byte) {
	for _, r := range string(p) {
		t.feed(r)
	}
}

func (t *Terminal) feed(r rune) {
	switch t.state {
	case stateNormal:
		t.feedNormal(r)
	case stateEsc:
		t.feedEsc(r)
	case stateEscIntermediate:
		t.feedEscIntermediate(r)
	case stateCSI:
		t.feedCSI(r)
	case stateOSC:
		t.feedOSC(r)
	case stateOSCEsc:
		t.feedOSCEsc(r)
	case stateDCS:
		t.feedDCS(r)
	case stateDCSEsc:
		t.feedDCSEsc(r)
	}
}

func (t *Terminal) feedNormal(r rune) {
	switch r {
	case 0x1b:
		t.beginEscape()
		return
	case '\n':
		t.linefeed()
		return
	case '\r':
		t.cursorCol = 0
		t.pendingWrap = false
		return
	case '\b':
		if t.cursorCol > 0 {
			t.cursorCol--
		}
		t.pendingWrap = false
		return
	case '\t':
		t.advanceTab()
		return
	case 0x07: // bell outside OSC: ignored
		return
	}
	if r < 0x20 {
		return // other C0 bytes discarded
	}
	if unicode.Is(unicode.Mark, r) {
		t.attachCombining(r)
		return
	}
	t.writeGlyph(r)
}

func (t *Terminal) beginEscape() {
	t.state = stateEsc
	t.intermediate = t.intermediate[:0]
	t.params = t.params[:0]
	t.curParam = 0
	t.hasParam = false
	t.private = 0
}

func (t *Terminal) feedEsc(r rune) {
	switch r {
	case '[':
		t.state = stateCSI
		return
	case ']':
		t.state = stateOSC
		t.strBuf = t.strBuf[:0]
		return
	case 'P':
		t.state = stateDCS
		t.strBuf = t.strBuf[:0]
		return
	case '7':
		t.savedRow, t.savedCol = t.cursorRow, t.cursorCol
		t.state = stateNormal
		return
	case '8':
		t.cursorRow, t.cursorCol = t.savedRow, t.savedCol
		t.pendingWrap = false
		t.state = stateNormal
		return
	case 'c':
		t.hardReset()
		t.state = stateNormal
		return
	}
	if r >= 0x20 && r <= 0x2f {
		t.intermediate = append(t.intermediate, byte(r))
		t.state = stateEscIntermediate
		return
	}
	t.state = stateNormal
}

func (t *Terminal) feedEscIntermediate(r rune) {
	// No two-character ESC sequences beyond save/restore are in scope;
	// fall back to normal on any final byte.
	t.state = stateNormal
}

func (t *Terminal) linefeed() {
	t.cursorRow++
	if t.cursorRow > t.scrollBottom {
		t.cursorRow = t.scrollBottom
		t.scrollUp(1)
	}
}

func (t *Terminal) advanceTab() {
	for c := t.cursorCol + 1; c < t.cols; c++ {
		if c < len(t.tabStops) && t.tabStops[c] {
			t.cursorCol = c
			return
		}
	}
	t.cursorCol = t.cols - 1
}

func (t *Terminal) attachCombining(r rune) {
	row := t.screen().at(t.cursorRow)
	col := t.cursorCol - 1
	if col < 0 {
		return
	}
	row.cells[col].glyph += string(r)
	row.touch()
}

func (t *Terminal) writeGlyph(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 {
		w = 1
	}
	if t.pendingWrap {
		t.wrapLine()
	}
	if w == 2 && t.cursorCol == t.cols-1 {
		t.wrapLine()
	}

	row := t.screen().at(t.cursorRow)
	row.cells[t.cursorCol] = cell{glyph: string(r), width: w, style: t.style}
	row.touch()
	if w == 2 && t.cursorCol+1 < t.cols {
		row.cells[t.cursorCol+1] = cell{glyph: "", width: 0, continued: true, style: t.style}
	}

	if t.cursorCol+w >= t.cols {
		t.cursorCol = t.cols - 1
		t.pendingWrap = true
	} else {
		t.cursorCol += w
	}
}

func (t *Terminal) wrapLine() {
	t.pendingWrap = false
	t.cursorCol = 0
	t.linefeed()
}

func (t *Terminal) scrollUp(n int) {
	sb := t.screen()
	for i := 0; i < n; i++ {
		top := sb.lines[t.scrollTop]
		if t.active == ScreenPrimary {
			t.pushScrollback(top)
		}
		copy(sb.lines[t.scrollTop:t.scrollBottom], sb.lines[t.scrollTop+1:t.scrollBottom+1])
		sb.lines[t.scrollBottom] = newLine(t.cols)
	}
}

func (t *Terminal) pushScrollback(l *line) {
	t.scrollback = append(t.scrollback, l)
	if t.scrollbackLimit > 0 && len(t.scrollback) > t.scrollbackLimit {
		t.scrollback = t.scrollback[len(t.scrollback)-t.scrollbackLimit:]
	}
}

// hardReset implements ESC c (spec.md §4.4 "Hard reset").
func (t *Terminal) hardReset() {
	t.primary = newScreenBuffer(t.rows, t.cols)
	t.alternate = newScreenBuffer(t.rows, t.cols)
	t.active = ScreenPrimary
	t.scrollback = nil
	t.cursorRow, t.cursorCol = 0, 0
	t.savedRow, t.savedCol = 0, 0
	t.pendingWrap = false
	t.cursorVisible = true
	t.cursorShape = ShapeBlock
	t.cursorBlink = false
	t.style = Style{}
	t.originMode = false
	t.scrollTop = 0
	t.scrollBottom = t.rows - 1
	t.resetTabStops()
	t.modes = Modes{}
	t.palette.resetAll()
	t.fgOverride = ColorRef{}
	t.bgOverride = ColorRef{}
	t.cursorOverride = ColorRef{}
	t.viewportTop = 0
	t.followOutput = true
}
