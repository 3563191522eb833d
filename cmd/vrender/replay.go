package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vrender/internal/config"
	"github.com/vango-dev/vrender/internal/source"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/renderer"
)

func replayCmd() *cobra.Command {
	var (
		page     string
		query    string
		document bool
		events   bool
	)

	cmd := &cobra.Command{
		Use:   "replay <uri>",
		Short: "Apply a recorded mutation stream to a headless document",
		Long: `Apply a recorded mutation stream to a headless document and print
the result.

The stream may be a binary frame log, a YAML scenario (.yaml/.yml) or an
S3 object (s3://bucket/key). Native events scripted in a scenario are
fired after their batch; --events prints the synthetic events they
produce.

Examples:
  vrender replay counter.yaml
  vrender replay session.vrl --query "//button"
  vrender replay s3://recordings/app/session.vrl --page shell.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, cfg, args[0], replayOutput{
				page:     page,
				query:    query,
				document: document,
				events:   events,
			})
		},
	}

	cmd.Flags().StringVar(&page, "page", "", "HTML file to mount into (default: empty document)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Print the markup of nodes matching this XPath instead of the mount")
	cmd.Flags().BoolVar(&document, "document", false, "Print the whole document instead of the mount")
	cmd.Flags().BoolVarP(&events, "events", "e", false, "Print synthetic events as JSON lines")

	return cmd
}

type replayOutput struct {
	page     string
	query    string
	document bool
	events   bool
}

func runReplay(ctx context.Context, cfg *config.Config, uri string, out replayOutput) error {
	logger := newLogger()

	doc := htmldom.New()
	if out.page != "" {
		f, err := os.Open(out.page)
		if err != nil {
			return err
		}
		doc, err = htmldom.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", out.page, err)
		}
	}

	opts := append(cfg.RendererOptions(), renderer.WithLogger(logger))
	r, err := renderer.New(doc, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.Run(ctx)

	src, err := source.Open(ctx, uri, source.WithS3(source.S3Options{
		Region:    cfg.Source.S3Region,
		Endpoint:  cfg.Source.S3Endpoint,
		PathStyle: cfg.Source.S3PathStyle,
	}))
	if err != nil {
		return err
	}
	defer src.Close()

	rep, replayErr := source.Replay(ctx, r, doc, src, logger)
	if rep != nil {
		info("%d batches, %d instructions applied, %d skipped", rep.Batches, rep.Applied, rep.Skipped)
		if rep.Skipped > 0 {
			warn("some instructions were rejected by the document; run with --log-level=warn for details")
		}
	}
	if replayErr != nil {
		return replayErr
	}

	if out.events {
		enc := json.NewEncoder(os.Stdout)
		for _, ev := range rep.Events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	return r.View(ctx, func(d dom.Document, reg *registry.Registry) error {
		switch {
		case out.query != "":
			matches, err := doc.QueryHTML(out.query)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Println(m)
			}
		case out.document:
			fmt.Println(doc.String())
		default:
			mount, err := reg.Get(cfg.Renderer.RootID)
			if err != nil {
				return err
			}
			fmt.Println(htmldom.InnerHTML(mount))
		}
		return nil
	})
}
