package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/reconcile"

	"github.com/spf13/cobra"
)

// namePipeline reconciles a name list into a table.
type namePipeline interface {
	Run(ctx context.Context, names []string, progress reconcile.ProgressFunc) (*reconcile.Table, error)
}

type checkOptions struct {
	csv    bool
	output string
	quiet  bool
}

func newCheckCommand(configPath *string) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Reconcile names from a file or stdin and print the result",
		Long: `Reads one species name per line, reconciles them and prints the result.

Small results are printed as a table. Results above pipeline.preview_size
rows are written as CSV to --output (default ` + reconcile.DownloadFilename + `).`,
		Example: `  species-checker check names.txt
  printf 'Canis lupus\nFelis catus\n' | species-checker check -
  species-checker check names.txt --csv > arter.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runCheck(ctx, a.newRunner(), a.cfg.Pipeline, text, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.csv, "csv", false, "Print CSV instead of a table")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write CSV to this file")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not report progress")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func runCheck(ctx context.Context, pipeline namePipeline, cfg config.PipelineConfig, text string, opts *checkOptions, stdout, stderr io.Writer) error {
	names := reconcile.ParseNames(text)
	if len(names) == 0 {
		return apperrors.NewEmptyInputError()
	}
	if cfg.MaxNames > 0 && len(names) > cfg.MaxNames {
		return apperrors.NewInputTooLargeError(len(names), cfg.MaxNames)
	}

	progress := func(p reconcile.Progress) {
		if !opts.quiet {
			fmt.Fprintf(stderr, "\r%d/%d names reconciled", p.Processed, p.Total)
		}
	}
	table, err := pipeline.Run(ctx, names, progress)
	if !opts.quiet {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	selector := reconcile.NewSelector(cfg.PreviewSize, cfg.ScoreThreshold)
	p := selector.Select(table)
	fmt.Fprintf(stderr, "%d line(s) processed.\n", p.RowCount)

	output := opts.output
	if output == "" && p.Mode == reconcile.ModeDownload && !opts.csv {
		output = reconcile.DownloadFilename
	}

	switch {
	case output != "":
		if err := writeCSVFile(output, table); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Result written to %s.\n", output)
	case opts.csv:
		if err := reconcile.WriteCSV(stdout, table); err != nil {
			return err
		}
	default:
		if err := reconcile.WriteTable(stdout, table); err != nil {
			return err
		}
	}

	if p.LowScore {
		fmt.Fprintf(stderr, "Warning: lowest match score is %s, below %s. Check the matches.\n",
			reconcile.FormatScore(p.MinScore), reconcile.FormatScore(selector.ScoreThreshold))
	}
	return nil
}

func writeCSVFile(path string, table *reconcile.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := reconcile.WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
