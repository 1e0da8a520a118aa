package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	State       string
	Overrides   bool
	Suspended   bool
	On          string
	MaxPriority int
	Room        string
}

// NewRulesCommand creates the rules command: a filtered listing of the
// rule table for operators.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List pricing rules",
		Long: `List pricing rules, most precedent first. Filters combine; with no
filters every rule is listed.

Example:
  rateguard rules --db ./rates.db --state active --on 2026-12-24`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "all", "filter by state: all|active|inactive")
	cmd.Flags().BoolVar(&opts.Overrides, "overrides", false, "list only override rules")
	cmd.Flags().BoolVar(&opts.Suspended, "suspended", false, "list only rules suspended by an override")
	cmd.Flags().StringVar(&opts.On, "on", "", "list only rules whose window contains this date, YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.MaxPriority, "max-priority", 0, "list only rules at this priority or more precedent")
	cmd.Flags().StringVar(&opts.Room, "room", "", "list only rules whose scope covers this room type")

	return cmd
}

func (opts *RulesOptions) query() (store.RuleQuery, error) {
	q := store.RuleQuery{
		MaxPriority: opts.MaxPriority,
		Room:        opts.Room,
	}
	switch opts.State {
	case "all":
	case "active":
		active := true
		q.Active = &active
	case "inactive":
		active := false
		q.Active = &active
	default:
		return q, NewExitError(ExitCommandError, fmt.Sprintf("unknown state %q (want all, active or inactive)", opts.State))
	}
	if opts.Overrides {
		override := true
		q.Override = &override
	}
	if opts.Suspended {
		suspended := true
		q.Suspended = &suspended
	}
	if opts.On != "" {
		on, err := parseDate("on", opts.On)
		if err != nil {
			return q, err
		}
		q.On = &on
	}
	return q, nil
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	q, err := opts.query()
	if err != nil {
		return err
	}

	_, st, cleanup, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	out := newFormatter(opts.RootOptions, cmd)

	found, err := st.SearchRules(cmd.Context(), q)
	if err != nil {
		return reportEngineError(out, err)
	}

	views := make([]map[string]any, len(found))
	for i, r := range found {
		views[i] = ruleView(r)
	}
	return out.SuccessText(map[string]any{"rules": views, "count": len(found)}, renderRules(found))
}

func ruleView(r *rules.PricingRule) map[string]any {
	v := map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"priority":    r.Priority,
		"active":      r.Active,
		"start":       r.Start.Format("2006-01-02"),
		"end":         r.End.Format("2006-01-02"),
		"scope":       r.Scope.String(),
		"source":      r.Meta.Source,
		"fingerprint": rules.Fingerprint(r),
	}
	if r.Meta.Override {
		v["override"] = true
	}
	if r.Meta.SuspendedBy != "" {
		v["suspended_by"] = r.Meta.SuspendedBy
	}
	return v
}

func renderRules(found []*rules.PricingRule) string {
	if len(found) == 0 {
		return "No rules match."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d rule(s):\n", len(found))
	for _, r := range found {
		state := "inactive"
		if r.Active {
			state = "active"
		}
		if r.Meta.SuspendedBy != "" {
			state = "suspended by " + r.Meta.SuspendedBy
		}
		fmt.Fprintf(&b, "  [%2d] %-24s %s  %s to %s  (%s, %s)\n",
			r.Priority, r.Name, state,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"),
			r.Scope, r.Meta.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}
