package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vrender/internal/config"
	"github.com/vango-dev/vrender/internal/debugsrv"
	"github.com/vango-dev/vrender/internal/transport"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/renderer"
	"github.com/vango-dev/vrender/pkg/telemetry"
)

func connectCmd() *cobra.Command {
	var debugAddr string

	cmd := &cobra.Command{
		Use:   "connect [ws-url]",
		Short: "Run a live headless session against an engine",
		Long: `Connect to an engine over WebSocket and render its mutation stream
into a headless document until the engine closes the session.

The URL defaults to transport.url from vrender.toml. A debug server with
/healthz, /metrics, /snapshot, /nodes, /query and /session runs on
debug.listen unless --debug="" is given.

Examples:
  vrender connect ws://localhost:3000/_vrender
  vrender connect --debug=:7070`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Transport.URL = args[0]
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug.Listen = debugAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Transport.URL == "" {
				return errors.New("no engine URL: pass one or set transport.url")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConnect(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&debugAddr, "debug", "", "Debug server address (default from vrender.toml)")

	return cmd
}

func runConnect(ctx context.Context, cfg *config.Config) error {
	logger := newLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))

	doc := htmldom.New()
	opts := append(cfg.RendererOptions(),
		renderer.WithLogger(logger),
		renderer.WithMetrics(metrics),
		renderer.WithTracer(telemetry.NewTracer("")))
	r, err := renderer.New(doc, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.Run(ctx)

	sess, err := transport.Dial(ctx, r, transport.Config{
		URL:          cfg.Transport.URL,
		DialTimeout:  cfg.Transport.DialTimeout,
		WriteTimeout: cfg.Transport.WriteTimeout,
		PingInterval: cfg.Transport.PingInterval,
		PongTimeout:  cfg.Transport.PongTimeout,
		Compress:     cfg.Transport.Compress,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	success("Connected to %s", cfg.Transport.URL)

	if cfg.Debug.Listen != "" {
		h := debugsrv.Handler(r, doc, debugsrv.Config{
			Gatherer: reg,
			Session:  func() any { return sess.Stats() },
			Logger:   logger,
		})
		go func() {
			if err := debugsrv.Serve(ctx, cfg.Debug.Listen, h, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
				warn("debug server: %v", err)
			}
		}()
		info("Debug server on http://%s", cfg.Debug.Listen)
	}

	err = sess.Run(ctx)
	st := sess.Stats()
	info("%d batches applied, %d events sent", st.Batches, st.EventsSent)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
