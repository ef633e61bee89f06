package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Track external project costs",
}

var costAddCmd = &cobra.Command{
	Use:   "add [project-id] [amount]",
	Short: "Record an external cost on a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		amount, err := parseMoney("amount", args[1])
		if err != nil {
			return err
		}
		if amount == nil {
			return NewCLIError("amount is required", "Pass the amount as the second argument", nil)
		}
		date := costDate
		if date == "" {
			date = time.Now().Format(billing.DateLayout)
		}
		actor, _ := actingUser(services)

		item, err := services.Catalog.AddCostItem(commandContext(cmd), actor, application.AddCostItemInput{
			ProjectID:   args[0],
			TaskID:      costTaskID,
			Description: costDescription,
			Amount:      *amount,
			NonBillable: costNonBillable,
			Date:        date,
		})
		if err != nil {
			return MapError(fmt.Errorf("failed to add cost: %w", err))
		}
		fmt.Printf("Added cost %s: %s on %s\n", item.ID, item.Amount.StringFixed(2), item.Date.Format(billing.DateLayout))
		return nil
	},
}

var costTaskID string
var costDescription string
var costDate string
var costNonBillable bool

func init() {
	costAddCmd.Flags().StringVar(&costTaskID, "task", "", "Attribute the cost to a task of the project")
	costAddCmd.Flags().StringVarP(&costDescription, "description", "d", "", "What the cost was for")
	costAddCmd.Flags().StringVar(&costDate, "date", "", "Cost date (YYYY-MM-DD, default: today)")
	costAddCmd.Flags().BoolVar(&costNonBillable, "non-billable", false, "Exclude the cost from finance totals")

	costCmd.AddCommand(costAddCmd)
	RootCmd.AddCommand(costCmd)
}
