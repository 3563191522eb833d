package protocol

import (
	"fmt"
)

// ControlType identifies the type of control message.
type ControlType uint8

const (
	ControlPing  ControlType = 0x01
	ControlPong  ControlType = 0x02
	ControlClose ControlType = 0x20
)

// String returns the name of the control type.
func (ct ControlType) String() string {
	switch ct {
	case ControlPing:
		return "Ping"
	case ControlPong:
		return "Pong"
	case ControlClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// Control is a control message. Timestamp is set for ping/pong (Unix
// milliseconds), Reason for close.
type Control struct {
	Type      ControlType
	Timestamp uint64
	Reason    string
}

// EncodeControl encodes a control message.
func EncodeControl(c *Control) []byte {
	e := NewEncoderWithCap(16)
	e.WriteByte(byte(c.Type))
	switch c.Type {
	case ControlPing, ControlPong:
		e.WriteUvarint(c.Timestamp)
	case ControlClose:
		e.WriteString(c.Reason)
	}
	return e.Bytes()
}

// DecodeControl decodes a control message.
func DecodeControl(data []byte) (*Control, error) {
	d := NewDecoder(data)
	t, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	c := &Control{Type: ControlType(t)}
	switch c.Type {
	case ControlPing, ControlPong:
		c.Timestamp, err = d.ReadUvarint()
	case ControlClose:
		c.Reason, err = d.ReadString()
	default:
		return nil, fmt.Errorf("protocol: unknown control type 0x%02x", t)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Ack acknowledges that every batch up to LastSeq has been applied.
type Ack struct {
	LastSeq uint64
}

// EncodeAck encodes an Ack.
func EncodeAck(a *Ack) []byte {
	e := NewEncoderWithCap(10)
	e.WriteUvarint(a.LastSeq)
	return e.Bytes()
}

// DecodeAck decodes an Ack.
func DecodeAck(data []byte) (*Ack, error) {
	seq, err := NewDecoder(data).ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Ack{LastSeq: seq}, nil
}

// ErrorCode classifies an error report sent over the wire.
type ErrorCode uint16

const (
	ErrCodeUnknown           ErrorCode = 0x0000
	ErrCodeInvalidFrame      ErrorCode = 0x0001
	ErrCodeProtocolViolation ErrorCode = 0x0002 // Batch referenced unknown node, underflowed, ...
	ErrCodeQueueFull         ErrorCode = 0x0003
	ErrCodeServerError       ErrorCode = 0x0100
)

// String returns the name of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrCodeInvalidFrame:
		return "InvalidFrame"
	case ErrCodeProtocolViolation:
		return "ProtocolViolation"
	case ErrCodeQueueFull:
		return "QueueFull"
	case ErrCodeServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// ErrorMessage is an error report. Fatal reports end the session.
type ErrorMessage struct {
	Code    ErrorCode
	Seq     uint64 // Batch sequence the error refers to, if any
	Message string
	Fatal   bool
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	return fmt.Sprintf("%s (seq %d): %s", em.Code, em.Seq, em.Message)
}

// EncodeErrorMessage encodes an ErrorMessage.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteUvarint(em.Seq)
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Seq: seq, Message: msg, Fatal: fatal}, nil
}
