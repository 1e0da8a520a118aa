package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rateguard/internal/engine"
	"github.com/roach88/rateguard/internal/rules"
)

// NewOverrideCommand creates the override command group.
func NewOverrideCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage emergency overrides",
	}
	cmd.AddCommand(newOverrideCreateCommand(rootOpts))
	cmd.AddCommand(newOverrideRemoveCommand(rootOpts))
	cmd.AddCommand(newOverrideListCommand(rootOpts))
	return cmd
}

// OverrideCreateOptions holds flags for override create.
type OverrideCreateOptions struct {
	*RootOptions
	Name     string
	Strategy string
	Percent  float64
	Urgency  string
	Start    string
	End      string
	Rooms    []string
	Reason   string
	StaffID  string
}

func newOverrideCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OverrideCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an emergency override",
		Long: `Create an immediately-active override in the reserved priority band.
Active rules whose dates and scope collide are suspended until the
override is removed or expires.

Example:
  rateguard override create --db ./rates.db --name "flood response" \
    --strategy decrease --percent 30 --urgency critical \
    --start 2026-12-05 --end 2026-12-09 \
    --reason "flooding in the old town" --staff staff-42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverrideCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "override name (required)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "increase|decrease|block-bookings (required)")
	cmd.Flags().Float64Var(&opts.Percent, "percent", 0, "percent for increase/decrease strategies")
	cmd.Flags().StringVar(&opts.Urgency, "urgency", string(engine.UrgencyHigh), "high|critical")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end date, YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&opts.Rooms, "rooms", nil, "room types in scope (default: all)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the override is needed (required)")
	cmd.Flags().StringVar(&opts.StaffID, "staff", "", "requesting staff id (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("strategy")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("staff")

	return cmd
}

func runOverrideCreate(opts *OverrideCreateOptions, cmd *cobra.Command) error {
	eng, _, cleanup, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()
	out := newFormatter(opts.RootOptions, cmd)

	start, err := parseDate("start", opts.Start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", opts.End)
	if err != nil {
		return err
	}

	ov, cerr := eng.CreateEmergencyOverride(cmd.Context(), engine.OverrideRequest{
		Name:     opts.Name,
		Strategy: engine.OverrideStrategy(opts.Strategy),
		Percent:  opts.Percent,
		Urgency:  engine.Urgency(opts.Urgency),
		Start:    start,
		End:      end,
		Scope:    scopeFromFlags(opts.Rooms),
		Reason:   opts.Reason,
		StaffID:  opts.StaffID,
	})
	if cerr != nil && !engine.IsPartialFailure(cerr) {
		return reportEngineError(out, cerr)
	}

	text := fmt.Sprintf("override %s created at priority %d, %d rule(s) suspended",
		ov.ID, ov.Priority, len(ov.Meta.SuspendedRuleIDs))
	if err := out.SuccessText(overrideView(ov), text); err != nil {
		return err
	}
	if cerr != nil {
		// Partial: the override stands, but tell the operator.
		return reportEngineError(out, cerr)
	}
	return nil
}

func newOverrideRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var staffID, reason string

	cmd := &cobra.Command{
		Use:           "remove <override-id>",
		Short:         "Remove an override and restore suspended rules",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := openEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()
			out := newFormatter(rootOpts, cmd)

			if err := eng.RemoveOverride(cmd.Context(), args[0], staffID, reason); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("override %s removed", args[0]))
		},
	}

	cmd.Flags().StringVar(&staffID, "staff", "", "staff id performing the removal (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the override is being removed (required)")
	_ = cmd.MarkFlagRequired("staff")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newOverrideListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List overrides currently in force",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := openEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()
			out := newFormatter(rootOpts, cmd)

			overrides, err := eng.GetActiveOverrides(cmd.Context())
			if err != nil {
				return reportEngineError(out, err)
			}

			views := make([]map[string]any, len(overrides))
			var b strings.Builder
			for i, ov := range overrides {
				views[i] = overrideView(ov)
				fmt.Fprintf(&b, "%s  p%d  %s to %s  %q (%s)\n",
					ov.ID, ov.Priority,
					ov.Start.Format("2006-01-02"), ov.End.Format("2006-01-02"),
					ov.Name, ov.Meta.Reason)
			}
			text := strings.TrimRight(b.String(), "\n")
			if text == "" {
				text = "no active overrides"
			}
			return out.SuccessText(views, text)
		},
	}
}

// overrideView is the JSON shape shared by override commands.
func overrideView(ov *rules.PricingRule) map[string]any {
	return map[string]any{
		"id":        ov.ID,
		"name":      ov.Name,
		"priority":  ov.Priority,
		"start":     ov.Start.Format("2006-01-02"),
		"end":       ov.End.Format("2006-01-02"),
		"scope":     ov.Scope.String(),
		"reason":    ov.Meta.Reason,
		"staff":     ov.Meta.CreatedBy,
		"suspended": ov.Meta.SuspendedRuleIDs,
	}
}

// newFormatter builds the command's output formatter from the root
// options.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
