package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rateguard/internal/engine"
	"github.com/roach88/rateguard/internal/rules"
	"github.com/roach88/rateguard/internal/store"
)

// NewEventCommand creates the event command group.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage events and their pricing rules",
	}
	cmd.AddCommand(newEventCreateCommand(rootOpts))
	cmd.AddCommand(newEventUpdateCommand(rootOpts))
	cmd.AddCommand(newEventDeleteCommand(rootOpts))
	return cmd
}

// EventCreateOptions holds flags for event create.
type EventCreateOptions struct {
	*RootOptions
	Title       string
	Description string
	Category    string
	Start       string
	End         string
	Priority    int
	Action      string
	Percent     float64
	Rate        int64
	MinStay     int
	Rooms       []string
	Origin      string
	Confidence  float64
	Notes       string
}

func newEventCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a confirmed event with its pricing rule",
		Long: `Create a confirmed event and its pricing rule in one step. The
allocator picks a priority unless --priority is given; conflict
detection runs before anything is written and blocking conflicts abort
the command. The rule starts inactive and is activated by the sweep
once the event enters the lead window.

Example:
  rateguard event create --db ./rates.db --title "NYE Countdown" \
    --category major-sports --start 2026-12-30 --end 2027-01-01 \
    --action increase-percent --percent 25`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "event title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "event description")
	cmd.Flags().StringVar(&opts.Category, "category", string(rules.CategoryOther), categoryHelp())
	cmd.Flags().StringVar(&opts.Start, "start", "", "event start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "event end date, YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "explicit priority (default: allocator's choice)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "action kind: increase-percent|decrease-percent|set-rate|restrict-bookings (required)")
	cmd.Flags().Float64Var(&opts.Percent, "percent", 0, "percent for percent actions")
	cmd.Flags().Int64Var(&opts.Rate, "rate-cents", 0, "rate in cents for set-rate")
	cmd.Flags().IntVar(&opts.MinStay, "min-stay", 0, "minimum stay nights for restrict-bookings")
	cmd.Flags().StringSliceVar(&opts.Rooms, "rooms", nil, "room types in scope (default: all)")
	cmd.Flags().StringVar(&opts.Origin, "origin", "manual", "where the event suggestion came from")
	cmd.Flags().Float64Var(&opts.Confidence, "confidence", 1.0, "source confidence, 0..1")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes from the source")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func runEventCreate(opts *EventCreateOptions, cmd *cobra.Command) error {
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
	action, err := actionFromFlags(opts.Action, opts.Percent, opts.Rate, opts.MinStay)
	if err != nil {
		return err
	}

	ev := &rules.Event{
		Title:       opts.Title,
		Description: opts.Description,
		Start:       start,
		End:         end,
		Category:    rules.Category(opts.Category),
		Status:      rules.StatusConfirmed,
	}
	r, cerr := eng.CreateEventRule(cmd.Context(), ev, engine.SuggestedRule{
		Priority:   opts.Priority,
		Action:     action,
		Scope:      scopeFromFlags(opts.Rooms),
		Origin:     opts.Origin,
		Confidence: opts.Confidence,
		Notes:      opts.Notes,
	})
	if cerr != nil {
		return reportEngineError(out, cerr)
	}

	data := map[string]any{
		"event_id": ev.ID,
		"rule_id":  r.ID,
		"priority": r.Priority,
	}
	text := fmt.Sprintf("event %s created with rule %s at priority %d (inactive until the lead window)",
		ev.ID, r.ID, r.Priority)
	return out.SuccessText(data, text)
}

func newEventUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var startFlag, endFlag, title, description string

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Update an event, mirroring date changes to its rule",
		Long: `Update an event's title, description, or dates. Date changes are
mirrored to the linked pricing rule; the rule keeps its priority and no
conflict detection re-runs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, cleanup, err := openEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()
			out := newFormatter(rootOpts, cmd)

			ev, gerr := st.GetEvent(cmd.Context(), args[0])
			if gerr != nil {
				if gerr == store.ErrEventNotFound {
					return reportEngineError(out, &engine.NotFoundError{Kind: "event", ID: args[0]})
				}
				return WrapExitError(ExitCommandError, "load event", gerr)
			}

			if title != "" {
				ev.Title = title
			}
			if description != "" {
				ev.Description = description
			}
			if startFlag != "" {
				t, perr := parseDate("start", startFlag)
				if perr != nil {
					return perr
				}
				ev.Start = t
			}
			if endFlag != "" {
				t, perr := parseDate("end", endFlag)
				if perr != nil {
					return perr
				}
				ev.End = t
			}

			if err := eng.UpdateEventRule(cmd.Context(), ev); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("event %s updated", ev.ID))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&startFlag, "start", "", "new start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&endFlag, "end", "", "new end date, YYYY-MM-DD")

	return cmd
}

func newEventDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <event-id>",
		Short:         "Delete an event and its pricing rule",
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

			if err := eng.DeleteEventRule(cmd.Context(), args[0]); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("event %s deleted", args[0]))
		},
	}
}

func categoryHelp() string {
	s := "event category: "
	for i, c := range rules.KnownCategories {
		if i > 0 {
			s += "|"
		}
		s += string(c)
	}
	return s
}
