package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rateguard/internal/engine"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep",
		Long: `Run the three lifecycle passes once: expire overdue overrides,
deactivate rules of ended events, and activate rules of events starting
within the lead window. Safe to run repeatedly; each pass is
idempotent.

Example:
  rateguard sweep --db ./rates.db
  rateguard sweep --db ./rates.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, cmd)
		},
	}
	return cmd
}

type sweepOutput struct {
	Overrides  *engine.SweepResult `json:"overrides"`
	Cleanup    *engine.SweepResult `json:"cleanup"`
	Activation *engine.SweepResult `json:"activation"`
}

func runSweep(opts *RootOptions, cmd *cobra.Command) error {
	eng, _, cleanup, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	overrides, cleanupRes, activation, err := eng.Sweep(cmd.Context())
	if err != nil {
		return reportEngineError(out, err)
	}

	result := sweepOutput{Overrides: overrides, Cleanup: cleanupRes, Activation: activation}
	text := renderSweep(result)
	if err := out.SuccessText(result, text); err != nil {
		return err
	}

	failed := len(overrides.Failures) + len(cleanupRes.Failures) + len(activation.Failures)
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("sweep finished with %d failure(s)", failed))
	}
	return nil
}

func renderSweep(s sweepOutput) string {
	var b strings.Builder
	writePass := func(name string, r *engine.SweepResult) {
		fmt.Fprintf(&b, "%s: %d processed", name, len(r.Processed))
		if len(r.Failures) > 0 {
			fmt.Fprintf(&b, ", %d failed", len(r.Failures))
		}
		b.WriteString("\n")
		for _, id := range r.Processed {
			fmt.Fprintf(&b, "  %s\n", id)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  FAILED %s: %s\n", f.RuleID, f.Err)
		}
	}
	writePass("expired overrides", s.Overrides)
	writePass("ended events", s.Cleanup)
	writePass("approaching events", s.Activation)
	return strings.TrimRight(b.String(), "\n")
}
