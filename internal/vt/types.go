// Package vt implements the Snapshot Oracle (spec.md §4.4, component
// C4): a deterministic VT/ANSI state machine that turns a byte stream
// into hashable SnapshotFrame values. It is written from scratch rather
// than wrapping a rendering-oriented terminal library — see DESIGN.md
// for why.
package vt

// CursorShape enumerates the DECSCUSR cursor shapes.
type CursorShape int

const (
	ShapeBlock CursorShape = iota
	ShapeUnderline
	ShapeBar
)

// Screen identifies which of the two screens is active.
type Screen int

const (
	ScreenPrimary Screen = iota
	ScreenAlternate
)

// Style carries the rendered attributes of a single cell.
type Style struct {
	Bold      bool
	Dim       bool
	Italic    bool
	Underline bool
	Inverse   bool

	FG ColorRef
	BG ColorRef
}

// ColorKind distinguishes default/indexed/truecolor references.
type ColorKind int

const (
	ColorDefault ColorKind = iota
	ColorIndexed
	ColorTrueColor
)

// ColorRef is a foreground or background color reference.
type ColorRef struct {
	Kind  ColorKind
	Index uint8 // ColorIndexed
	R, G, B uint8 // ColorTrueColor
}

// Cursor is the frame's cursor position and rendering.
type Cursor struct {
	Row, Col int
	Visible  bool
	Shape    CursorShape
	Blinking bool
}

// Modes carries the terminal mode flags a consumer needs to render
// correctly (bracketed paste, mouse tracking variants, focus tracking).
type Modes struct {
	BracketedPaste bool
	MouseX10       bool
	MouseButtonEvent bool
	MouseAnyEvent  bool
	FocusTracking  bool
	MouseSGR       bool
}

// Viewport describes the visible window into the combined
// scrollback+screen buffer.
type Viewport struct {
	Top          int
	TotalRows    int
	FollowOutput bool
}

// RichCell is a single cell's full render data.
type RichCell struct {
	Glyph     string
	Width     int
	Continued bool
	Style     Style
}

// SnapshotFrame is the deterministic, hashable terminal snapshot.
type SnapshotFrame struct {
	Rows, Cols   int
	ActiveScreen Screen
	Modes        Modes
	Cursor       Cursor
	Viewport     Viewport
	Lines        []string
	RichLines    [][]RichCell
	FrameHash    string `json:"-"`
}
