package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var housekeepingCmd = &cobra.Command{
	Use:   "housekeeping",
	Short: "Move unfinished overdue tasks to today",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		n := services.Housekeeping.RollOverdueTasks(commandContext(cmd))
		fmt.Printf("Rolled %d overdue tasks to today\n", n)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(housekeepingCmd)
}
