package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// VerifyResult is the outcome of a consistency check.
type VerifyResult struct {
	OK       bool     `json:"ok"`
	Entries  int      `json:"entries"`
	Problems []string `json:"problems,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check entries against the schema and the indexes",
		Long: `Re-validate every entry against the schema and cross-check every
secondary index against the entries. Exits 1 when problems are found.`,
		Args: checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	errs := e.server.Verify(ctx)
	res := VerifyResult{OK: len(errs) == 0, Entries: e.server.Stats().Entries}
	for _, err := range errs {
		res.Problems = append(res.Problems, err.Error())
	}

	err = e.out.Success(res, func(w io.Writer) {
		for _, p := range res.Problems {
			fmt.Fprintln(w, p)
		}
		if res.OK {
			fmt.Fprintf(w, "ok: %d entries verified\n", res.Entries)
		} else {
			fmt.Fprintf(w, "%d problems in %d entries\n", len(res.Problems), res.Entries)
		}
	})
	if err != nil {
		return err
	}
	if !res.OK {
		return reportedExit(ExitFailure, "verify found problems")
	}
	return nil
}
