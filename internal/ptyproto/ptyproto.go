// Package ptyproto implements the PTY helper's stdin opcode framing
// (spec.md §4.1). The helper's stdin accepts a concatenation of framed
// opcodes; its stdout is raw PTY output with no framing at all.
package ptyproto

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode identifies a framed control message written to the helper's stdin.
type Opcode byte

const (
	OpData   Opcode = 0x01
	OpResize Opcode = 0x02
	OpClose  Opcode = 0x03
)

// Frame is a single decoded opcode frame.
type Frame struct {
	Op      Opcode
	Payload []byte // DATA only
	Cols    uint16 // RESIZE only
	Rows    uint16 // RESIZE only
}

// EncodeData writes an OpData frame: opcode, big-endian uint32 length, payload.
func EncodeData(w io.Writer, payload []byte) error {
	if _, err := w.Write([]byte{byte(OpData)}); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// EncodeResize writes an OpResize frame: opcode, big-endian uint16 cols, rows.
func EncodeResize(w io.Writer, cols, rows uint16) error {
	buf := make([]byte, 5)
	buf[0] = byte(OpResize)
	binary.BigEndian.PutUint16(buf[1:3], cols)
	binary.BigEndian.PutUint16(buf[3:5], rows)
	_, err := w.Write(buf)
	return err
}

// EncodeClose writes an OpClose frame: the bare opcode byte.
func EncodeClose(w io.Writer) error {
	_, err := w.Write([]byte{byte(OpClose)})
	return err
}

// ErrMalformedFrame is returned by Decode on any parsing failure. Per
// spec.md §4.1, any parsing failure on a frame terminates the helper.
var ErrMalformedFrame = fmt.Errorf("ptyproto: malformed frame")

// Decode reads one frame from r. Returns io.EOF only at a clean frame
// boundary (no partial frame pending).
func Decode(r *bufio.Reader) (Frame, error) {
	opByte, err := r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	switch Opcode(opByte) {
	case OpData:
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return Frame{}, joinMalformed(err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, joinMalformed(err)
		}
		return Frame{Op: OpData, Payload: payload}, nil
	case OpResize:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Frame{}, joinMalformed(err)
		}
		return Frame{
			Op:   OpResize,
			Cols: binary.BigEndian.Uint16(buf[0:2]),
			Rows: binary.BigEndian.Uint16(buf[2:4]),
		}, nil
	case OpClose:
		return Frame{Op: OpClose}, nil
	default:
		return Frame{}, ErrMalformedFrame
	}
}

func joinMalformed(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrMalformedFrame
	}
	return err
}
