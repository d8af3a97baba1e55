package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listScenariosCmd = &cobra.Command{
	Use:   "list-scenarios",
	Short: "List available scenarios",
	Long:  `Lists the built-in motion scenarios, plus any found in the scenarios directory, with their descriptions.`,
	RunE:  runListScenarios,
}

func runListScenarios(cmd *cobra.Command, args []string) error {
	registry, err := loadScenarios()
	if err != nil {
		return err
	}

	names := registry.List()
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found")
		return nil
	}

	descriptions := registry.ListWithDescriptions()
	fmt.Fprintln(cmd.OutOrStdout(), "Available scenarios:")
	fmt.Fprintln(cmd.OutOrStdout())
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s\n", name, descriptions[name])
	}
	fmt.Fprintln(cmd.OutOrStdout())

	return nil
}
