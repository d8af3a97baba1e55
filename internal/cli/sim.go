package cli

import (
	"github.com/spf13/cobra"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Motion simulation commands",
	Long:  `Commands for generating, recording, replaying and inspecting synthetic motion scenarios.`,
}

func init() {
	simCmd.AddCommand(recordCmd)
	simCmd.AddCommand(replayCmd)
	simCmd.AddCommand(listScenariosCmd)
	simCmd.AddCommand(describeCmd)
}
