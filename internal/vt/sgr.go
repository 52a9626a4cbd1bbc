package vt

// applySGR interprets the collected CSI params as an SGR (CSI ... m)
// sequence (spec.md §4.4 "SGR").
func (t *Terminal) applySGR() {
	if len(t.params) == 0 {
		t.style = Style{}
		return
	}
	for i := 0; i < len(t.params); i++ {
		p := t.params[i]
		switch {
		case p == 0:
			t.style = Style{}
		case p == 1:
			t.style.Bold = true
		case p == 2:
			t.style.Dim = true
		case p == 3:
			t.style.Italic = true
		case p == 4:
			t.style.Underline = true
		case p == 7:
			t.style.Inverse = true
		case p == 22:
			t.style.Bold, t.style.Dim = false, false
		case p == 23:
			t.style.Italic = false
		case p == 24:
			t.style.Underline = false
		case p == 27:
			t.style.Inverse = false
		case p >= 30 && p <= 37:
			t.style.FG = ColorRef{Kind: ColorIndexed, Index: uint8(p - 30)}
		case p >= 90 && p <= 97:
			t.style.FG = ColorRef{Kind: ColorIndexed, Index: uint8(p-90) + 8}
		case p == 39:
			t.style.FG = ColorRef{}
		case p >= 40 && p <= 47:
			t.style.BG = ColorRef{Kind: ColorIndexed, Index: uint8(p - 40)}
		case p >= 100 && p <= 107:
			t.style.BG = ColorRef{Kind: ColorIndexed, Index: uint8(p-100) + 8}
		case p == 49:
			t.style.BG = ColorRef{}
		case p == 38:
			i = t.consumeExtendedColor(i, &t.style.FG)
		case p == 48:
			i = t.consumeExtendedColor(i, &t.style.BG)
		}
	}
}

// consumeExtendedColor handles the "38;5;n" and "38;2;r;g;b" forms
// starting at index i (pointing at the 38/48 itself), returning the new
// index for the outer loop to continue from.
func (t *Terminal) consumeExtendedColor(i int, dst *ColorRef) int {
	if i+1 >= len(t.params) {
		return i
	}
	switch t.params[i+1] {
	case 5:
		if i+2 < len(t.params) {
			*dst = ColorRef{Kind: ColorIndexed, Index: uint8(t.params[i+2])}
			return i + 2
		}
	case 2:
		if i+4 < len(t.params) {
			*dst = ColorRef{
				Kind: ColorTrueColor,
				R:    uint8(t.params[i+2]),
				G:    uint8(t.params[i+3]),
				B:    uint8(t.params[i+4]),
			}
			return i + 4
		}
	}
	return i
}
