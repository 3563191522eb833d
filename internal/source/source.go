// Package source opens recorded mutation streams for replay.
//
// Three forms are understood:
//
//   - a binary frame log (any path without a YAML extension, optionally
//     prefixed with file://), a sequence of FrameMutations frames as
//     written by WriteLog;
//   - a YAML scenario (.yaml or .yml), a readable list of steps, each a
//     batch plus native events to fire once the batch is applied;
//   - s3://bucket/key, either of the above fetched from S3.
package source

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/protocol"
)

// ErrUnsupportedScheme is returned for URIs other than file:// and s3://.
var ErrUnsupportedScheme = errors.New("source: unsupported scheme")

// Step is one batch of a recorded stream.
type Step struct {
	Batch *protocol.Batch

	// Fire lists native events to simulate after Batch is applied. Frame
	// logs carry none.
	Fire []NativeEvent
}

// NativeEvent describes a simulated native event.
type NativeEvent struct {
	Type   string                      `yaml:"type"`
	Target protocol.NodeID             `yaml:"target"`
	Fields map[string]any              `yaml:"fields,omitempty"`
	Lists  map[string][]map[string]any `yaml:"lists,omitempty"`
}

// Source yields the steps of a recorded stream in order. Next returns
// io.EOF after the last step.
type Source interface {
	Next(ctx context.Context) (*Step, error)
	Close() error
}

// Options configures Open.
type Options struct {
	S3 S3Options
}

// Option configures Open.
type Option func(*Options)

// WithS3 sets the S3 client settings.
func WithS3(o S3Options) Option {
	return func(opts *Options) { opts.S3 = o }
}

// Open opens the stream at uri.
func Open(ctx context.Context, uri string, opts ...Option) (Source, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	if strings.HasPrefix(uri, "s3://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, unavailable(uri, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, unavailable(uri, errors.New("expected s3://bucket/key"))
		}
		body, err := fetchS3(ctx, o.S3, u.Host, key)
		if err != nil {
			return nil, unavailable(uri, err)
		}
		return openReader(uri, key, body)
	}

	path := strings.TrimPrefix(uri, "file://")
	if i := strings.Index(path, "://"); i >= 0 {
		return nil, unavailable(uri, ErrUnsupportedScheme)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, unavailable(uri, err)
	}
	return openReader(uri, path, f)
}

func openReader(uri, name string, rc io.ReadCloser) (Source, error) {
	if isScenario(name) {
		defer rc.Close()
		sc, err := ReadScenario(rc)
		if err != nil {
			return nil, unavailable(uri, err)
		}
		return sc.Source(), nil
	}
	return NewLogReader(rc), nil
}

func isScenario(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func unavailable(uri string, err error) error {
	return rerrors.New("R041").
		WithDetail("Could not open " + uri).
		Wrap(err)
}

// ReadAll drains src.
func ReadAll(ctx context.Context, src Source) ([]*Step, error) {
	var steps []*Step
	for {
		s, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return steps, nil
		}
		if err != nil {
			return steps, err
		}
		steps = append(steps, s)
	}
}
