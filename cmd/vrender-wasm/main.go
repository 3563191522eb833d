//go:build js && wasm

// Command vrender-wasm runs the renderer in the browser. It mounts on the
// element named by the data-vrender-mount attribute of the current script
// (default: body) and exposes a global vrender object:
//
//	vrender.apply(bytes)       // apply a mutation frame (Uint8Array)
//	vrender.onEvents(fn)       // fn(Uint8Array) receives encoded event batches
//	vrender.onError(fn)        // fn(code, message) for rejected frames
//	vrender.reset()            // clear a faulted renderer
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hack-pad/safejs"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom/jsdom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/renderer"
)

type host struct {
	r       *renderer.Renderer
	frames  chan []byte
	onEvent safejs.Value
	onError safejs.Value
	logger  *slog.Logger
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	doc, err := jsdom.New()
	if err != nil {
		logger.Error("no document", "error", err)
		return
	}
	doc.SetLogger(logger)

	var opts []renderer.Option
	opts = append(opts, renderer.WithLogger(logger))
	if id := mountID(); id != "" {
		opts = append(opts, renderer.WithMountID(id))
	}
	r, err := renderer.New(doc, opts...)
	if err != nil {
		logger.Error("renderer", "error", err)
		return
	}

	h := &host{
		r:      r,
		frames: make(chan []byte, 64),
		logger: logger.With("component", "wasm"),
	}
	if err := h.export(); err != nil {
		logger.Error("export", "error", err)
		return
	}

	ctx := context.Background()
	go h.applyLoop(ctx)
	go h.eventLoop(ctx)
	if err := r.Run(ctx); err != nil {
		logger.Error("renderer stopped", "error", err)
	}
}

func mountID() string {
	script, err := safejs.Global().Get("document")
	if err != nil {
		return ""
	}
	script, err = script.Get("currentScript")
	if err != nil || script.IsNull() || script.IsUndefined() {
		return ""
	}
	v, err := script.Call("getAttribute", "data-vrender-mount")
	if err != nil || v.IsNull() {
		return ""
	}
	s, _ := v.String()
	return s
}

func (h *host) export() error {
	obj, err := safejs.Global().Get("Object")
	if err != nil {
		return err
	}
	api, err := obj.New()
	if err != nil {
		return err
	}

	funcs := map[string]func(args []safejs.Value) any{
		"apply": func(args []safejs.Value) any {
			if len(args) == 0 {
				return false
			}
			n, err := args[0].Length()
			if err != nil {
				return false
			}
			buf := make([]byte, n)
			if _, err := safejs.CopyBytesToGo(buf, args[0]); err != nil {
				return false
			}
			select {
			case h.frames <- buf:
				return true
			default:
				h.logger.Warn("frame queue full, dropping frame", "bytes", n)
				return false
			}
		},
		"onEvents": func(args []safejs.Value) any {
			if len(args) > 0 {
				h.onEvent = args[0]
			}
			return nil
		},
		"onError": func(args []safejs.Value) any {
			if len(args) > 0 {
				h.onError = args[0]
			}
			return nil
		},
		"reset": func([]safejs.Value) any {
			go func() {
				if err := h.r.Reset(context.Background()); err != nil {
					h.logger.Warn("reset failed", "error", err)
				}
			}()
			return nil
		},
	}
	for name, fn := range funcs {
		fn := fn
		f, err := safejs.FuncOf(func(_ safejs.Value, args []safejs.Value) any {
			return fn(args)
		})
		if err != nil {
			return err
		}
		if err := api.Set(name, f.Value()); err != nil {
			return err
		}
	}
	return safejs.Global().Set("vrender", api)
}

// applyLoop applies frames in arrival order. JavaScript callbacks must not
// block, so apply only enqueues.
func (h *host) applyLoop(ctx context.Context) {
	for data := range h.frames {
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			h.report(rerrors.New("R007").Wrap(err))
			continue
		}
		if _, err := h.r.ApplyFrame(ctx, f); err != nil {
			h.report(err)
		}
	}
}

func (h *host) report(err error) {
	h.logger.Warn("frame rejected", "code", rerrors.CodeOf(err), "error", err)
	if h.onError.IsUndefined() || h.onError.IsNull() {
		return
	}
	if _, err := h.onError.Invoke(rerrors.CodeOf(err), err.Error()); err != nil {
		h.logger.Warn("onError callback failed", "error", err)
	}
}

// eventLoop forwards drained events to the onEvents callback.
func (h *host) eventLoop(ctx context.Context) {
	for {
		events, err := h.r.Events().Wait(ctx)
		if err != nil {
			return
		}
		if h.onEvent.IsUndefined() || h.onEvent.IsNull() {
			continue
		}
		payload := protocol.EncodeEvents(events)
		arr, err := uint8Array(payload)
		if err != nil {
			h.logger.Warn("event buffer", "error", err)
			continue
		}
		if _, err := h.onEvent.Invoke(arr); err != nil {
			h.logger.Warn("onEvents callback failed", "error", err)
		}
	}
}

func uint8Array(data []byte) (safejs.Value, error) {
	ctor, err := safejs.Global().Get("Uint8Array")
	if err != nil {
		return safejs.Value{}, err
	}
	arr, err := ctor.New(len(data))
	if err != nil {
		return safejs.Value{}, err
	}
	if _, err := safejs.CopyBytesToJS(arr, data); err != nil {
		return safejs.Value{}, err
	}
	return arr, nil
}
