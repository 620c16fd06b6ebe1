package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cognicore/chargram/pkg/chargram"
	"github.com/cognicore/chargram/pkg/chargram/config"
	"github.com/cognicore/chargram/pkg/chargram/corpus"
	"github.com/cognicore/chargram/pkg/chargram/report"
	"github.com/cognicore/chargram/pkg/chargram/store/sqlite"
)

// runFlags holds the command line values shared by the subcommands. Values
// only override the YAML config when the flag was set explicitly.
type runFlags struct {
	configPath  string
	alphabet    string
	offsetBack  int
	offsetFront int
	workers     int
	chunkSize   int64
	boundary    string
	input       string
	output      string
	targets     string
	prefix      string
	ordered     bool
	normalizer  string
	quiet       bool
}

func newRootCmd() *cobra.Command {
	f := &runFlags{}

	root := &cobra.Command{
		Use:           "chargram",
		Short:         "Character co-occurrence statistics for text corpora",
		Long:          `Takes in text files and analyses how often characters appear near each other.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML run configuration")
	root.PersistentFlags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not print progress")

	root.AddCommand(newGatherCmd(f), newExtractCmd(f), newNormalizeCmd(f), newInspectCmd(f), newCorpusCmd())
	return root
}

func addScanFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.alphabet, "acceptable-types", "a", "", "Accepted characters, e.g. 'a,b,c' or 'abc'")
	cmd.Flags().IntVar(&f.offsetBack, "offset-back", config.DefaultOffset, "Characters examined behind each base character")
	cmd.Flags().IntVar(&f.offsetFront, "offset-front", config.DefaultOffset, "Characters examined ahead of each base character")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrent chunk workers (default: number of CPUs)")
	cmd.Flags().Int64Var(&f.chunkSize, "chunk-size", 0, "Bytes per chunk (default 16384)")
	cmd.Flags().StringVar(&f.boundary, "boundary", "", "Chunk edge handling: overlap or isolated")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input text file")
}

func newGatherCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Build the co-occurrence histogram of an input file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := resolve(cmd, f, config.ModeGather)
			if err != nil {
				return err
			}
			return runGather(cmd.Context(), cmd.ErrOrStderr(), run, f.quiet)
		},
	}
	addScanFlags(cmd, f)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output container (SQLite file)")
	return cmd
}

func newExtractCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Write the windows surrounding each target character as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := resolve(cmd, f, config.ModeExtract)
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cmd.ErrOrStderr(), run, f.quiet)
		},
	}
	addScanFlags(cmd, f)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory for per-target CSV files")
	cmd.Flags().StringVarP(&f.targets, "targets", "t", "", "Target characters to extract windows around")
	cmd.Flags().StringVar(&f.prefix, "prefix", config.DefaultPrefix, "File name prefix for CSV outputs")
	cmd.Flags().BoolVar(&f.ordered, "ordered", false, "Write windows in file order (buffers all windows)")
	return cmd
}

func newNormalizeCmd(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a stored histogram into normalized_data",
		Long: `Normalize a stored histogram along the neighbor axis.

Policies:
  0 min-max        (x - min) / (max - min)
  1 sum-to-one     x / sum
  2 center         x - mean
  3 divide-by-max  x / max
  4 z-score        (x - mean) / population stddev`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := resolve(cmd, f, config.ModeNormalize)
			if err != nil {
				return err
			}
			return runNormalize(cmd.Context(), cmd.ErrOrStderr(), run)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Container holding absolute_data")
	cmd.Flags().StringVarP(&f.normalizer, "normalizer", "n", "", "Policy id (0-4) or name")
	return cmd
}

func newInspectCmd(f *runFlags) *cobra.Command {
	var (
		base   string
		offset int
		top    int
	)
	cmd := &cobra.Command{
		Use:   "inspect <container>",
		Short: "Print the neighbors of one character at one offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseChar(base)
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], chargram.InspectRequest{Base: b, Offset: offset, Top: top})
		},
	}
	cmd.Flags().StringVarP(&base, "base", "b", "", "Base character")
	cmd.Flags().IntVar(&offset, "offset", 1, "Signed offset of the neighbor")
	cmd.Flags().IntVarP(&top, "top", "k", 0, "Only show the k most frequent neighbors")
	return cmd
}

func newCorpusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "corpus <file>...",
		Short: "Build a plain text corpus from HTML and text files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create corpus: %w", err)
			}
			stats, err := corpus.Build(out, args)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			log.Printf("Wrote %d files (%s) to %s", stats.Files, humanize.Bytes(uint64(stats.Bytes)), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "corpus.txt", "Corpus file to write")
	return cmd
}

// resolve merges the YAML config (if any) with explicitly set flags and
// validates the result for mode.
func resolve(cmd *cobra.Command, f *runFlags, mode string) (*config.Run, error) {
	run := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		run = loaded
	}
	run.Mode = mode

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if fl := flags.Lookup(name); fl != nil && fl.Changed {
			apply()
		}
	}
	set("acceptable-types", func() { run.Alphabet = f.alphabet })
	set("offset-back", func() { run.OffsetBack = &f.offsetBack })
	set("offset-front", func() { run.OffsetFront = &f.offsetFront })
	set("workers", func() { run.Workers = f.workers })
	set("chunk-size", func() { run.ChunkSize = f.chunkSize })
	set("boundary", func() { run.Boundary = f.boundary })
	set("input", func() { run.Input = f.input })
	set("output", func() { run.Output = f.output })
	set("targets", func() { run.Targets = f.targets })
	set("prefix", func() { run.Prefix = f.prefix })
	set("ordered", func() { run.Ordered = f.ordered })
	set("normalizer", func() { run.Normalizer = f.normalizer })

	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

func runGather(ctx context.Context, stderr io.Writer, run *config.Run, quiet bool) error {
	alpha, err := run.BuildAlphabet()
	if err != nil {
		return err
	}
	win, err := run.Window()
	if err != nil {
		return err
	}
	opts, err := run.GatherOptions()
	if err != nil {
		return err
	}
	if !quiet {
		opts.Progress = progressPrinter(stderr)
	}
	// Check the input before OpenSQLite creates the output file.
	if _, err := os.Stat(run.Input); err != nil {
		return fmt.Errorf("open input: %w", err)
	}

	st, err := sqlite.OpenSQLite(ctx, run.Output)
	if err != nil {
		return fmt.Errorf("open %s: %w", run.Output, err)
	}
	engine := chargram.New(chargram.Options{Store: st})
	defer engine.Close()

	log.Printf("Accepted types are: %q (window -%d..+%d, %s boundary)", alpha.String(), win.Back, win.Front, opts.Boundary)
	start := time.Now()
	res, err := engine.Gather(ctx, chargram.GatherRequest{
		Input:    run.Input,
		Alphabet: alpha,
		Window:   win,
		Options:  opts,
	})
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(stderr)
	}
	log.Printf("Gathered %s in %d chunks, %d co-occurrences, run %s (%s)",
		humanize.Bytes(uint64(res.Bytes)), res.Chunks, res.Histogram.Total(), res.RunID, time.Since(start).Round(time.Millisecond))
	return nil
}

func runExtract(ctx context.Context, stderr io.Writer, run *config.Run, quiet bool) error {
	alpha, err := run.BuildAlphabet()
	if err != nil {
		return err
	}
	win, err := run.Window()
	if err != nil {
		return err
	}
	opts, err := run.GatherOptions()
	if err != nil {
		return err
	}
	if !quiet {
		opts.Progress = progressPrinter(stderr)
	}

	targets := run.TargetBytes()
	stats, err := chargram.Extract(ctx, chargram.ExtractRequest{
		Input:     run.Input,
		OutputDir: run.Output,
		Prefix:    run.Prefix,
		Alphabet:  alpha,
		Window:    win,
		Targets:   targets,
		Options:   opts,
	})
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(stderr)
	}
	for _, t := range targets {
		log.Printf("%s: %d windows", report.Label(t), stats.PerTarget[t])
	}
	log.Printf("Extracted %d windows from %d chunks into %s", stats.Windows, stats.Chunks, run.Output)
	return nil
}

func runNormalize(ctx context.Context, stderr io.Writer, run *config.Run) error {
	policy, err := run.Policy()
	if err != nil {
		return err
	}
	if _, err := os.Stat(run.Output); err != nil {
		return fmt.Errorf("open container: %w", err)
	}

	st, err := sqlite.OpenSQLite(ctx, run.Output)
	if err != nil {
		return fmt.Errorf("open %s: %w", run.Output, err)
	}
	engine := chargram.New(chargram.Options{Store: st})
	defer engine.Close()

	res, err := engine.Normalize(ctx, policy)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", run.Output, err)
	}
	log.Printf("Wrote normalized_data (%s, shape %v) to %s", res.Policy, res.Tensor.Shape(), run.Output)
	return nil
}

func runInspect(ctx context.Context, stdout io.Writer, path string, req chargram.InspectRequest) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open container: %w", err)
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	engine := chargram.New(chargram.Options{Store: st})
	defer engine.Close()

	rows, err := engine.Inspect(ctx, req)
	if err != nil {
		return err
	}
	report.WriteTable(stdout, rows)
	return nil
}

// progressPrinter returns a best-effort carriage-return progress line.
func progressPrinter(w io.Writer) func(done, total int) {
	return func(done, total int) {
		fmt.Fprintf(w, "\rAt %d out of %d = %.1f%%", done, total, 100*float64(done)/float64(total))
	}
}

// parseChar accepts a single character (code point <= 255) or a quoted Go
// character literal such as '\n'.
func parseChar(s string) (byte, error) {
	if s == "" {
		return 0, fmt.Errorf("a base character is required")
	}
	if len(s) > 1 && s[0] == '\'' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, fmt.Errorf("invalid character literal %s: %w", s, err)
		}
		s = unquoted
	}
	rs := []rune(s)
	if len(rs) != 1 || rs[0] > 0xFF {
		return 0, fmt.Errorf("base must be one single-byte character, got %q", s)
	}
	return byte(rs[0]), nil
}
