package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/playtest/internal/matrix"
	"github.com/roach88/playtest/internal/sim"
)

// MatrixResult is the JSON payload of the matrix command.
type MatrixResult struct {
	Count     int            `json:"count"`
	Scenarios []sim.Scenario `json:"scenarios"`
}

// NewMatrixCommand creates the matrix command.
func NewMatrixCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "List the scenarios a config expands to",
		Long: `Expand the matrix section of the config into scenarios without running
them. The expansion is deterministic: the same config always lists the
same scenarios in the same order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(rootOpts, cmd)
		},
	}

	return cmd
}

func runMatrix(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts, formatter)
	if err != nil {
		return err
	}
	scenarios, err := matrix.Generate(cfg.MatrixConfig())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeMatrix, "invalid matrix", err)
	}
	formatter.VerboseLog("Matrix expands to %d scenario(s)", len(scenarios))

	if formatter.JSON() {
		return formatter.Success(MatrixResult{Count: len(scenarios), Scenarios: scenarios})
	}
	fmt.Fprint(formatter.Writer, matrix.Listing(scenarios))
	fmt.Fprintf(formatter.Writer, "%d scenario(s)\n", len(scenarios))
	return nil
}
