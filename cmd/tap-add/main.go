// tap-add creates (or re-affirms) a persistent Linux TAP interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menhera-org/etherip-rs/internal/tap"
	appversion "github.com/menhera-org/etherip-rs/internal/version"
)

func main() {
	cmd := &cobra.Command{
		Use:     "tap-add <ifname>",
		Short:   "Create a persistent TAP interface",
		Version: appversion.Version,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return tap.Add(args[0])
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
