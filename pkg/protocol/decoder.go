package protocol

import (
	"errors"
	"io"
	"math"
)

// Common decoding errors.
var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
)

// StringPool returns canonical storage for byte strings that repeat across
// frames, such as tag, attribute and event names.
type StringPool interface {
	Canonical(b []byte) string
}

// Decoder reads wire-encoded values from a byte buffer.
type Decoder struct {
	buf  []byte
	pos  int
	pool StringPool
}

// NewDecoder creates a decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// WithPool makes ReadName resolve names through p.
func (d *Decoder) WithPool(p StringPool) *Decoder {
	d.pool = p
	return d
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF reports whether all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read offset.
func (d *Decoder) Position() int {
	return d.pos
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadUvarint reads an unsigned varint.
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := DecodeUvarint(d.buf[d.pos:])
	switch {
	case n == -1:
		return 0, io.ErrUnexpectedEOF
	case n < 0:
		return 0, ErrVarintOverflow
	}
	d.pos += n
	return v, nil
}

// ReadSvarint reads a signed varint using ZigZag decoding.
func (d *Decoder) ReadSvarint() (int64, error) {
	uv, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	v := int64(uv >> 1)
	if uv&1 != 0 {
		v = ^v
	}
	return v, nil
}

// ReadNodeID reads a node identifier.
func (d *Decoder) ReadNodeID() (NodeID, error) {
	v, err := d.ReadUvarint()
	return NodeID(v), err
}

// ReadCount reads a small count such as the n of AppendChildren.
func (d *Decoder) ReadCount() (int, error) {
	v, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if v > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	return int(v), nil
}

// ReadCollectionCount reads the element count of a collection that follows
// in the buffer. Each element occupies at least one byte, so a count larger
// than the remaining input is rejected before any allocation.
func (d *Decoder) ReadCollectionCount() (int, error) {
	n, err := d.ReadCount()
	if err != nil {
		return 0, err
	}
	if n > d.Remaining() {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (d *Decoder) readRaw() ([]byte, error) {
	length, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if length > uint64(d.Remaining()) {
		return nil, io.ErrUnexpectedEOF
	}
	if length > DefaultMaxAllocation {
		return nil, ErrAllocationTooLarge
	}
	b := d.buf[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return b, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.readRaw()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadName reads a length-prefixed string that belongs to the renderer's
// small vocabulary (tags, attribute and event names, namespaces). With a
// pool attached the result shares canonical storage.
func (d *Decoder) ReadName() (string, error) {
	b, err := d.readRaw()
	if err != nil {
		return "", err
	}
	if d.pool != nil {
		return d.pool.Canonical(b), nil
	}
	return string(b), nil
}

// ReadOptName reads an optional name written by WriteOptString.
func (d *Decoder) ReadOptName() (string, error) {
	present, err := d.ReadBool()
	if err != nil || !present {
		return "", err
	}
	return d.ReadName()
}

// ReadLenBytes reads length-prefixed bytes and returns a copy.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	b, err := d.readRaw()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadBool reads a boolean byte. Any non-zero value is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0x00, nil
}

// ReadUint16 reads a uint16 in big-endian byte order.
func (d *Decoder) ReadUint16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint16(d.buf[d.pos])<<8 | uint16(d.buf[d.pos+1])
	d.pos += 2
	return v, nil
}

// ReadUint64 reads a uint64 in big-endian byte order.
func (d *Decoder) ReadUint64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+8]
	v := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	d.pos += 8
	return v, nil
}

// ReadFloat64 reads a float64 in IEEE 754 format (big-endian).
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
