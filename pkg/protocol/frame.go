package protocol

import (
	"bufio"
	"errors"
	"io"
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameMutations FrameType = 0x01 // Engine → renderer mutation batch
	FrameEvents    FrameType = 0x02 // Renderer → engine synthetic events
	FrameControl   FrameType = 0x03 // Ping/pong, close
	FrameAck       FrameType = 0x04 // Batch acknowledgment
	FrameError     FrameType = 0x05 // Error report
)

// String returns the name of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameMutations:
		return "Mutations"
	case FrameEvents:
		return "Events"
	case FrameControl:
		return "Control"
	case FrameAck:
		return "Ack"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Payload is gzip compressed
	FlagFinal      FrameFlags = 0x04 // Last frame in a recorded stream
)

// Has reports whether flag is set.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
)

// Frame is a protocol frame: a 2-byte header, a uvarint payload length and
// the payload.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, 0, 2+UvarintLen(uint64(len(f.Payload)))+len(f.Payload))
	buf = append(buf, byte(f.Type), byte(f.Flags))
	buf = AppendUvarint(buf, uint64(len(f.Payload)))
	return append(buf, f.Payload...)
}

// DecodeFrame decodes a single frame that occupies all of data.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 3 {
		return nil, io.ErrUnexpectedEOF
	}
	length, n := DecodeUvarint(data[2:])
	switch {
	case n == -1:
		return nil, io.ErrUnexpectedEOF
	case n < 0:
		return nil, ErrVarintOverflow
	case length > MaxFrameSize:
		return nil, ErrFrameTooLarge
	}
	start := 2 + n
	if uint64(len(data)-start) < length {
		return nil, io.ErrUnexpectedEOF
	}
	payload := make([]byte, length)
	copy(payload, data[start:start+int(length)])
	return &Frame{
		Type:    FrameType(data[0]),
		Flags:   FrameFlags(data[1]),
		Payload: payload,
	}, nil
}

// ReadFrame reads one frame from r. It returns io.EOF only when r is
// exhausted exactly at a frame boundary.
func ReadFrame(r *bufio.Reader) (*Frame, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	length, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return &Frame{
		Type:    FrameType(header[0]),
		Flags:   FrameFlags(header[1]),
		Payload: payload,
	}, nil
}

func readUvarint(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; i < MaxVarintLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, io.ErrUnexpectedEOF
		}
		v |= uint64(b&0x7F) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	return 0, ErrVarintOverflow
}

// WriteFrame writes a complete frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}
