package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level irrigactl command.
var RootCmd = &cobra.Command{
	Use:           "irrigactl",
	Short:         "Irrigation schedule CLI",
	Long:          "Command line interface for listing, creating and deleting irrigation schedules through the API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
