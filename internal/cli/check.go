package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rateguard/internal/engine"
	"github.com/roach88/rateguard/internal/rules"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Start    string
	End      string
	Priority int
	Action   string
	Percent  float64
	Rate     int64
	MinStay  int
	Rooms    []string
}

// NewCheckCommand creates the check command: a dry-run conflict report
// for a hypothetical rule.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Detect conflicts for a hypothetical rule",
		Long: `Run conflict detection for a rule that does not exist yet. Nothing is
written; the command prints the conflict report and exits non-zero when
the rule could not proceed.

Example:
  rateguard check --db ./rates.db --start 2026-12-24 --end 2026-12-31 \
    --priority 14 --action increase-percent --percent 25`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "rule start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "rule end date, YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "proposed priority (required)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "action kind: increase-percent|decrease-percent|set-rate|restrict-bookings (required)")
	cmd.Flags().Float64Var(&opts.Percent, "percent", 0, "percent for percent actions")
	cmd.Flags().Int64Var(&opts.Rate, "rate-cents", 0, "rate in cents for set-rate")
	cmd.Flags().IntVar(&opts.MinStay, "min-stay", 0, "minimum stay nights for restrict-bookings")
	cmd.Flags().StringSliceVar(&opts.Rooms, "rooms", nil, "room types in scope (default: all)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("priority")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

// actionFromFlags builds a rules.Action from the shared action flags.
func actionFromFlags(kind string, percent float64, rateCents int64, minStay int) (rules.Action, error) {
	switch rules.ActionKind(kind) {
	case rules.ActionIncreasePercent:
		return rules.IncreasePercent{Percent: percent}, nil
	case rules.ActionDecreasePercent:
		return rules.DecreasePercent{Percent: percent}, nil
	case rules.ActionSetRate:
		return rules.SetRate{RateCents: rateCents}, nil
	case rules.ActionRestrictBookings:
		if minStay > 0 {
			return rules.RestrictBookings{MinStayNights: minStay}, nil
		}
		return rules.RestrictBookings{Block: true}, nil
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown action kind %q", kind))
	}
}

// scopeFromFlags builds a scope from --rooms; no rooms means all.
func scopeFromFlags(rooms []string) rules.Scope {
	if len(rooms) == 0 {
		return rules.ScopeAll()
	}
	return rules.ScopeOf(rooms...)
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	eng, _, cleanup, err := openEngine(opts.RootOptions)
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

	start, err := parseDate("start", opts.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", opts.End)
	if err != nil {
		return err
	}
	action, err := actionFromFlags(opts.Action, opts.Percent, opts.Rate, opts.MinStay)
	if err != nil {
		return err
	}

	report, err := eng.DetectConflicts(cmd.Context(), engine.Candidate{
		Start:    start,
		End:      end,
		Priority: opts.Priority,
		Action:   action,
		Scope:    scopeFromFlags(opts.Rooms),
	})
	if err != nil {
		return reportEngineError(out, err)
	}

	if err := out.SuccessText(report, renderReport(report)); err != nil {
		return err
	}
	if !report.CanProceed {
		return NewExitError(ExitFailure, "blocking conflicts found")
	}
	return nil
}

func renderReport(r *engine.ConflictReport) string {
	if !r.HasConflicts {
		return "no conflicts"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d conflict(s), can proceed: %v\n", len(r.Conflicts), r.CanProceed)
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "  [%s] %s %q: %s\n", c.Severity, c.Type, c.RuleName, c.Detail)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  -> %s\n", rec)
	}
	return strings.TrimRight(b.String(), "\n")
}
