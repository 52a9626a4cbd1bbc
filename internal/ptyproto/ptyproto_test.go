package ptyproto

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeData(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeData(&buf, []byte("ping\n")); err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	fr, err := Decode(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fr.Op != OpData || string(fr.Payload) != "ping\n" {
		t.Fatalf("got %+v", fr)
	}
}

func TestEncodeDecodeResize(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeResize(&buf, 80, 24); err != nil {
		t.Fatalf("EncodeResize: %v", err)
	}
	fr, err := Decode(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fr.Op != OpResize || fr.Cols != 80 || fr.Rows != 24 {
		t.Fatalf("got %+v", fr)
	}
}

func TestEncodeDecodeClose(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeClose(&buf); err != nil {
		t.Fatalf("EncodeClose: %v", err)
	}
	fr, err := Decode(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fr.Op != OpClose {
		t.Fatalf("got %+v", fr)
	}
}

func TestDecodeMalformedOpcode(t *testing.T) {
	_, err := Decode(bufio.NewReader(bytes.NewReader([]byte{0xff})))
	if err != ErrMalformedFrame {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(OpData))
	buf.Write([]byte{0, 0, 0, 10}) // claims 10 bytes, has none
	_, err := Decode(bufio.NewReader(&buf))
	if err != ErrMalformedFrame {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeCleanEOF(t *testing.T) {
	_, err := Decode(bufio.NewReader(bytes.NewReader(nil)))
	if err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestRoundTripSequence(t *testing.T) {
	var buf bytes.Buffer
	EncodeData(&buf, []byte("abc"))
	EncodeResize(&buf, 100, 40)
	EncodeClose(&buf)

	r := bufio.NewReader(&buf)
	fr1, err := Decode(r)
	if err != nil || fr1.Op != OpData {
		t.Fatalf("frame 1: %+v %v", fr1, err)
	}
	fr2, err := Decode(r)
	if err != nil || fr2.Op != OpResize {
		t.Fatalf("frame 2: %+v %v", fr2, err)
	}
	fr3, err := Decode(r)
	if err != nil || fr3.Op != OpClose {
		t.Fatalf("frame 3: %+v %v", fr3, err)
	}
}
