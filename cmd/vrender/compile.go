package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vrender/internal/source"
)

func compileCmd() *cobra.Command {
	var compress bool

	cmd := &cobra.Command{
		Use:   "compile <scenario.yaml> <out.vrl>",
		Short: "Compile a YAML scenario into a binary frame log",
		Long: `Compile a YAML scenario into a binary frame log that replay and
engines understand. Scripted native events are not part of the log.

Examples:
  vrender compile counter.yaml counter.vrl
  vrender compile big.yaml big.vrl --compress=false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(args[0], args[1], compress)
		},
	}

	cmd.Flags().BoolVar(&compress, "compress", true, "Gzip large batches")

	return cmd
}

func runCompile(in, out string, compress bool) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	sc, err := source.ReadScenario(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	batches, err := sc.Batches()
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	fired := 0
	for _, st := range sc.Steps {
		fired += len(st.Fire)
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := source.WriteLog(w, batches, compress); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	success("Wrote %d batches to %s", len(batches), out)
	if fired > 0 {
		warn("%d scripted native events were dropped; frame logs carry mutations only", fired)
	}
	return nil
}
