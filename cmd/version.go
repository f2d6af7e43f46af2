package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the convey version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("convey %s\n", appVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
