package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "audit",
		Short:         "Show recent audit log entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, cleanup, err := openEngine(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()
			out := newFormatter(rootOpts, cmd)

			entries, err := st.ListAudit(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "read audit log", err)
			}

			var b strings.Builder
			for _, e := range entries {
				fmt.Fprintf(&b, "%s  %-22s %v\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Event, e.Payload)
			}
			text := strings.TrimRight(b.String(), "\n")
			if text == "" {
				text = "audit log is empty"
			}
			return out.SuccessText(entries, text)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show, newest first")
	return cmd
}
