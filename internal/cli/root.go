package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the contractgen CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contractgen",
		Short: "Generate typed REST resource contracts from OpenAPI documents",
		Long: "contractgen reads an OpenAPI document and writes one TypeScript contract per resource, " +
			"naming the response, body and query types a frontend needs for it, plus an index that re-exports them.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Unknown flags and bad values become usage errors carrying the help text.
	cmd.SetFlagErrorFunc(flagUsageError)

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file path (YAML or JSON)")
	pf.BoolP("verbose", "v", false, "Enable debug logging (same as --log-level debug)")
	pf.String("log-level", "", "Log level: debug, info, warn or error (default info)")
	pf.Bool("pretty", false, "Human-readable console logs instead of JSON")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd()} {
		sub.SetFlagErrorFunc(flagUsageError)
		cmd.AddCommand(sub)
	}

	return cmd
}

func flagUsageError(c *cobra.Command, err error) error {
	return newUsageErrorf("%v\n\n%s", err, c.UsageString())
}
