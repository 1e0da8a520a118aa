package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Policy   string // policy .cue dir; empty means the embedded default
	Config   string // optional YAML config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rateguard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rateguard",
		Short: "rateguard - pricing rule conflict and lifecycle engine",
		Long: `Manage dynamic pricing rules for a hotel: detect conflicts between
overlapping rules, allocate priorities for event-driven rules, run
lifecycle sweeps, and raise or remove emergency overrides.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.applyConfig(); err != nil {
				return err
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "", "directory of policy .cue files (default: embedded policy)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")

	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewOverrideCommand(opts))
	cmd.AddCommand(NewEventCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
