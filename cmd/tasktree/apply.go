package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/abatilo/tasktree/internal/batch"
	"github.com/abatilo/tasktree/internal/store"
)

// applyCmd implements 'tasktree apply'.
func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <ops.yaml>",
		Short: "Apply a file of create, update and delete operations",
		Long: "Apply runs each operation in the file independently: a failed operation " +
			"is reported and the rest still run. Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					printError(fmt.Errorf("opening %s: %w", args[0], err))
				}
				defer f.Close()
				r = f
			}
			ops, err := batch.ReadOperations(r)
			if err != nil {
				printError(err)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				printError(err)
			}
			s, err := store.Open(cmd.Context(), cfg, logger)
			if err != nil {
				printError(err)
			}

			p := batch.New(s, cfg.Batch, batch.WithLogger(logger))
			res, err := p.Process(cmd.Context(), ops)
			if err != nil {
				_ = s.Close()
				printError(err)
			}
			printOutput(formatter.FormatBatch(res))
			if cerr := s.Close(); cerr != nil {
				printError(cerr)
			}
			if res.FailedCount > 0 {
				os.Exit(1)
			}
		},
	}
}

// checkCmd implements 'tasktree check'.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify hierarchy, subtask lists and the dependency graph",
		Run: func(cmd *cobra.Command, _ []string) {
			s, err := getStore(cmd.Context())
			if err != nil {
				printError(err)
			}

			problems := multierr.Errors(s.Check(cmd.Context()))
			_ = s.Close()
			printOutput(formatter.FormatProblems(problems))
			if len(problems) > 0 {
				os.Exit(1)
			}
		},
	}
}
