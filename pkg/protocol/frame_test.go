package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 300)
	f := &Frame{Type: FrameMutations, Flags: FlagFinal, Payload: payload}

	decoded, err := DecodeFrame(f.Encode())
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Type != FrameMutations || decoded.Flags != FlagFinal {
		t.Errorf("header = %v/%v", decoded.Type, decoded.Flags)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Error("payload mismatch")
	}
}

func TestDecodeFrameShort(t *testing.T) {
	data := NewFrame(FrameEvents, []byte("abcdef")).Encode()
	if _, err := DecodeFrame(data[:len(data)-1]); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReadFrameStream(t *testing.T) {
	var buf bytes.Buffer
	frames := []*Frame{
		NewFrame(FrameMutations, []byte{1, 2, 3}),
		NewFrame(FrameAck, EncodeAck(&Ack{LastSeq: 9})),
		NewFrame(FrameControl, nil),
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for i, want := range frames {
		got, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := ReadFrame(r); err != io.EOF {
		t.Fatalf("trailing ReadFrame err = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	data := NewFrame(FrameMutations, []byte("0123456789")).Encode()
	r := bufio.NewReader(bytes.NewReader(data[:6]))
	if _, err := ReadFrame(r); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("<div class=\"row\">", 200))
	f := NewFrame(FrameMutations, payload)

	cf, err := Compress(f)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !cf.Flags.Has(FlagCompressed) {
		t.Fatal("expected FlagCompressed")
	}
	if len(cf.Payload) >= len(payload) {
		t.Errorf("compressed size %d not smaller than %d", len(cf.Payload), len(payload))
	}

	out, err := Decompress(cf)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Error("round trip mismatch")
	}
}

func TestCompressSkipsSmallFrames(t *testing.T) {
	f := NewFrame(FrameEvents, []byte("tiny"))
	cf, err := Compress(f)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if cf != f {
		t.Error("small frame should be returned unchanged")
	}
}

func TestControlAndErrorMessages(t *testing.T) {
	c, err := DecodeControl(EncodeControl(&Control{Type: ControlPing, Timestamp: 1700000000000}))
	if err != nil || c.Type != ControlPing || c.Timestamp != 1700000000000 {
		t.Fatalf("ping round trip: %+v, %v", c, err)
	}
	c, err = DecodeControl(EncodeControl(&Control{Type: ControlClose, Reason: "bye"}))
	if err != nil || c.Reason != "bye" {
		t.Fatalf("close round trip: %+v, %v", c, err)
	}
	if _, err := DecodeControl([]byte{0x99}); err == nil {
		t.Fatal("expected error for unknown control type")
	}

	em := &ErrorMessage{Code: ErrCodeProtocolViolation, Seq: 12, Message: "unknown node 4", Fatal: true}
	got, err := DecodeErrorMessage(EncodeErrorMessage(em))
	if err != nil {
		t.Fatalf("DecodeErrorMessage: %v", err)
	}
	if *got != *em {
		t.Errorf("got %+v, want %+v", got, em)
	}
	if got.Error() != "ProtocolViolation (seq 12): unknown node 4" {
		t.Errorf("Error() = %q", got.Error())
	}
}
