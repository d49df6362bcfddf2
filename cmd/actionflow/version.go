package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

// Set through -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	var showKinds bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Actionflow %s (commit %s, built %s)\n", version, commit, date)
			if !showKinds {
				return nil
			}
			kinds := make([]string, 0, len(action.BuiltinKinds))
			for _, k := range action.BuiltinKinds {
				kinds = append(kinds, string(k))
			}
			fmt.Fprintf(out, "action kinds: %s\n", strings.Join(kinds, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKinds, "kinds", false, "also list the built-in action kinds")

	return cmd
}
