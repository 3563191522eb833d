package protocol

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CompressThreshold is the payload size above which Compress is worth it.
const CompressThreshold = 1024

// Compress returns a copy of f with a gzip-compressed payload and
// FlagCompressed set. Frames below CompressThreshold are returned as is.
func Compress(f *Frame) (*Frame, error) {
	if f.Flags.Has(FlagCompressed) || len(f.Payload) < CompressThreshold {
		return f, nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(f.Payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return &Frame{
		Type:    f.Type,
		Flags:   f.Flags | FlagCompressed,
		Payload: buf.Bytes(),
	}, nil
}

// Decompress returns the plain payload of f, inflating it when
// FlagCompressed is set. The inflated size is capped at MaxFrameSize.
func Decompress(f *Frame) ([]byte, error) {
	if !f.Flags.Has(FlagCompressed) {
		return f.Payload, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(f.Payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, MaxFrameSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}
