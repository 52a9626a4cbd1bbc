package vt

import "strings"

// feedDCS/feedDCSEsc implement DCS framing (spec.md §4.4 "DCS"): the
// payload is parsed and, if it is a query, routed to the unhandled-query
// hook; otherwise it has no render effect.
func (t *Terminal) feedDCS(r rune) {
	switch r {
	case 0x1b:
		t.state = stateDCSEsc
	default:
		t.strBuf = append(t.strBuf, []byte(string(r))...)
	}
}

func (t *Terminal) feedDCSEsc(r rune) {
	if r == '\\' {
		t.dispatchDCS(string(t.strBuf))
		t.state = stateNormal
		return
	}
	t.strBuf = append(t.strBuf, 0x1b)
	t.state = stateDCS
	t.feedDCS(r)
}

func (t *Terminal) dispatchDCS(payload string) {
	if strings.HasSuffix(payload, ";?") || strings.HasSuffix(payload, "?") {
		t.observeUnhandled("dcs", payload)
	}
}
