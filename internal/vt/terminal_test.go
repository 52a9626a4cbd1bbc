package vt

import "testing"

func TestPendingWrapCSIColoring(t *testing.T) {
	term := New(3, 5, 100)
	term.Write([]byte("abcde\x1b[31mf"))

	f := term.SnapshotNoHash()
	if f.Lines[0] != "abcde" {
		t.Fatalf("row 0 = %q, want %q", f.Lines[0], "abcde")
	}
	if f.Lines[1] != "f" {
		t.Fatalf("row 1 = %q, want %q", f.Lines[1], "f")
	}
	cell := f.RichLines[1][0]
	if cell.Style.FG.Kind != ColorIndexed || cell.Style.FG.Index != 1 {
		t.Fatalf("row 1 col 0 style = %+v, want indexed fg=1", cell.Style)
	}
}

func TestAltScreenPreservesPrimary(t *testing.T) {
	term := New(3, 10, 100)
	term.Write([]byte("hello"))
	term.Write([]byte("\x1b[?1049h"))
	term.Write([]byte("alt"))
	term.Write([]byte("\x1b[?1049l"))

	f := term.SnapshotNoHash()
	if f.ActiveScreen != ScreenPrimary {
		t.Fatalf("activeScreen = %v, want primary", f.ActiveScreen)
	}
	if f.Lines[0] != "hello" {
		t.Fatalf("primary row 0 = %q, want %q", f.Lines[0], "hello")
	}
	if f.Cursor.Row != 0 || f.Cursor.Col != 5 {
		t.Fatalf("cursor = %+v, want restored to (0,5)", f.Cursor)
	}
}

func TestDECSCUSRShapes(t *testing.T) {
	cases := []struct {
		seq      string
		shape    CursorShape
		blinking bool
	}{
		{"\x1b[0 q", ShapeBlock, true},
		{"\x1b[1 q", ShapeBlock, true},
		{"\x1b[6 q", ShapeBar, false},
	}
	for _, c := range cases {
		term := New(3, 10, 10)
		term.Write([]byte(c.seq))
		f := term.SnapshotNoHash()
		if f.Cursor.Shape != c.shape || f.Cursor.Blinking != c.blinking {
			t.Fatalf("%q -> shape=%v blinking=%v, want shape=%v blinking=%v",
				c.seq, f.Cursor.Shape, f.Cursor.Blinking, c.shape, c.blinking)
		}
	}
}

func TestFrameHashEqualForEqualFrames(t *testing.T) {
	a := New(3, 10, 10)
	b := New(3, 10, 10)
	a.Write([]byte("same"))
	b.Write([]byte("same"))

	fa := a.Snapshot()
	fb := b.Snapshot()
	if fa.FrameHash != fb.FrameHash {
		t.Fatalf("equal frames hashed differently: %s != %s", fa.FrameHash, fb.FrameHash)
	}

	a.Write([]byte("x"))
	fa2 := a.Snapshot()
	if fa2.FrameHash == fb.FrameHash {
		t.Fatalf("differing frames hashed identically")
	}
}

func TestLinefeedScrollsAndAccruesScrollback(t *testing.T) {
	term := New(2, 5, 100)
	term.Write([]byte("one\r\ntwo\r\nthree"))

	f := term.SnapshotNoHash()
	if f.Lines[0] != "two" || f.Lines[1] != "three" {
		t.Fatalf("screen = %v, want [two three]", f.Lines)
	}
	lines, start := term.BufferTail(10)
	if start != 0 {
		t.Fatalf("start = %d, want 0", start)
	}
	if len(lines) != 3 || lines[0] != "one" {
		t.Fatalf("tail = %v, want [one two three]", lines)
	}
}

func TestSelectionTextJoinsAcrossRows(t *testing.T) {
	term := New(3, 10, 10)
	term.Write([]byte("first\r\nsecond\r\nthird"))

	got := term.SelectionText(BufferPoint{Row: 0}, BufferPoint{Row: 1})
	want := "first\nsecond"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResizePreservesContentAndClampsCursor(t *testing.T) {
	term := New(3, 10, 10)
	term.Write([]byte("hello"))
	term.Resize(3, 3)

	f := term.SnapshotNoHash()
	if f.Cursor.Col != 2 {
		t.Fatalf("cursor col = %d, want clamped to 2", f.Cursor.Col)
	}
	if f.Lines[0] != "hel" {
		t.Fatalf("row 0 = %q, want truncated %q", f.Lines[0], "hel")
	}
}

func TestHardResetClearsEverything(t *testing.T) {
	term := New(3, 10, 10)
	term.Write([]byte("hello\x1b[31m"))
	term.Write([]byte("\x1bc"))

	f := term.SnapshotNoHash()
	if f.Lines[0] != "" {
		t.Fatalf("row 0 after hard reset = %q, want empty", f.Lines[0])
	}
	if f.Cursor.Row != 0 || f.Cursor.Col != 0 {
		t.Fatalf("cursor after hard reset = %+v, want (0,0)", f.Cursor)
	}
}

type recordingReplyWriter struct {
	replies [][]byte
}

func (r *recordingReplyWriter) WriteReply(p []byte) {
	r.replies = append(r.replies, append([]byte(nil), p...))
}

func TestCursorPositionReportReply(t *testing.T) {
	term := New(5, 10, 10)
	rw := &recordingReplyWriter{}
	term.SetReplyWriter(rw)

	term.Write([]byte("ab\x1b[6n"))
	if len(rw.replies) != 1 {
		t.Fatalf("want 1 reply, got %d", len(rw.replies))
	}
	if string(rw.replies[0]) != "\x1b[1;3R" {
		t.Fatalf("reply = %q, want %q", rw.replies[0], "\x1b[1;3R")
	}
}

func TestUnhandledQueryObserved(t *testing.T) {
	term := New(5, 10, 10)
	var kind, raw string
	term.SetUnhandledQueryHook(func(k, r string) { kind, raw = k, r })

	term.Write([]byte("\x1b]999;something;?\x07"))
	if kind != "osc" || raw != "something;?" {
		t.Fatalf("got kind=%q raw=%q", kind, raw)
	}
}
