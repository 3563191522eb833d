package source

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/vango-dev/vrender/pkg/protocol"
)

// LogReader reads a binary frame log. Frames other than FrameMutations are
// skipped; a frame with FlagFinal ends the log.
type LogReader struct {
	rc    io.ReadCloser
	r     *bufio.Reader
	index int
	final bool
}

// NewLogReader reads a frame log from rc. Close closes rc.
func NewLogReader(rc io.ReadCloser) *LogReader {
	return &LogReader{rc: rc, r: bufio.NewReader(rc)}
}

// Next returns the next batch.
func (l *LogReader) Next(ctx context.Context) (*Step, error) {
	for {
		if l.final {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := protocol.ReadFrame(l.r)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("frame %d: %w", l.index, err)
		}
		l.index++
		l.final = f.Flags.Has(protocol.FlagFinal)

		if f.Type != protocol.FrameMutations {
			continue
		}
		payload, err := protocol.Decompress(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", l.index-1, err)
		}
		b, err := protocol.DecodeBatch(payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", l.index-1, err)
		}
		return &Step{Batch: b}, nil
	}
}

// Close closes the underlying reader.
func (l *LogReader) Close() error { return l.rc.Close() }

// WriteLog writes batches as a frame log. The last frame carries
// FlagFinal. With compress set, large payloads are gzipped.
func WriteLog(w io.Writer, batches []*protocol.Batch, compress bool) error {
	bw := bufio.NewWriter(w)
	for i, b := range batches {
		f := protocol.NewFrame(protocol.FrameMutations, protocol.EncodeBatch(b))
		if compress {
			var err error
			if f, err = protocol.Compress(f); err != nil {
				return err
			}
		}
		if i == len(batches)-1 {
			f.Flags |= protocol.FlagFinal
		}
		if err := protocol.WriteFrame(bw, f); err != nil {
			return fmt.Errorf("batch %d: %w", b.Seq, err)
		}
	}
	return bw.Flush()
}
