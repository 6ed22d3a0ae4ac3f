package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
)

func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Example: "  relayclaw version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("relayclaw %s\n", internal.FormatVersion())
			build, goVer := internal.FormatBuildInfo()
			if build != "" {
				fmt.Printf("  built:      %s\n", build)
			}
			fmt.Printf("  go version: %s\n", goVer)
		},
	}

	return cmd
}
