package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Log and manage time entries",
}

var timeLogCmd = &cobra.Command{
	Use:   "log [task-id] [hours]",
	Short: "Log hours against a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, err := parseMoney("hours", args[1])
		if err != nil {
			return err
		}
		rate, err := parseMoney("rate", timeRate)
		if err != nil {
			return err
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		services.Housekeeping.RollOverdueTasks(ctx)

		date := timeDate
		if date == "" {
			date = time.Now().UTC().Format(billing.DateLayout)
		}
		in := application.LogTimeInput{
			TaskID:      args[0],
			UserID:      user,
			Date:        date,
			Description: timeDescription,
			NonBillable: timeNonBillable,
			Rate:        rate,
		}
		if hours != nil {
			in.Hours = *hours
		}

		logged, err := services.Billing.LogTime(ctx, in)
		if err != nil {
			return MapError(fmt.Errorf("failed to log time: %w", err))
		}
		printLoggedEntry("Logged", logged)
		return nil
	},
}

func printLoggedEntry(verb string, logged *application.LoggedEntry) {
	e := logged.Entry
	fmt.Printf("%s %s hours on %s (%s)\n", verb, e.Hours.StringFixed(3), e.TaskID, e.Date.Format(billing.DateLayout))
	fmt.Printf("Entry:  %s\n", e.ID)
	fmt.Printf("Rate:   %s/hr (%s)\n", logged.Rate.HourlyRate.StringFixed(2), logged.Rate.Source)
	if !logged.Charge.CeilingHours.IsZero() {
		fmt.Printf("Budget: %s hours within, %s hours overage\n",
			logged.Charge.WithinBudgetHours.StringFixed(3), logged.Charge.OverageHours.StringFixed(3))
	}
	fmt.Printf("Amount: %s\n", e.Amount.StringFixed(2))
	if !e.IsBillable {
		fmt.Println("(non-billable)")
	}
}

var timeEditCmd = &cobra.Command{
	Use:   "edit [entry-id]",
	Short: "Change a time entry and re-price it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := application.EditTimeEntryInput{ID: args[0], ResolveRate: timeResolveRate}

		var err error
		if cmd.Flags().Changed("hours") {
			if in.Hours, err = parseMoney("hours", timeHours); err != nil {
				return err
			}
		}
		if in.Rate, err = parseMoney("rate", timeRate); err != nil {
			return err
		}
		if cmd.Flags().Changed("date") {
			in.Date = &timeDate
		}
		if cmd.Flags().Changed("description") {
			in.Description = &timeDescription
		}
		if cmd.Flags().Changed("non-billable") {
			billable := !timeNonBillable
			in.Billable = &billable
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		in.UserID, _ = actingUser(services)

		logged, err := services.Billing.EditTimeEntry(commandContext(cmd), in)
		if err != nil {
			return MapError(fmt.Errorf("failed to edit time entry: %w", err))
		}

		printLoggedEntry("Updated", logged)
		return nil
	},
}

var timeRmCmd = &cobra.Command{
	Use:   "rm [entry-id]",
	Short: "Delete a time entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		user, _ := actingUser(services)

		if err := services.Billing.DeleteTimeEntry(commandContext(cmd), user, args[0]); err != nil {
			return MapError(fmt.Errorf("failed to delete time entry: %w", err))
		}
		fmt.Printf("Deleted time entry %s\n", args[0])
		return nil
	},
}

var timeListCmd = &cobra.Command{
	Use:   "list [task-id]",
	Short: "List a task's time entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		entries, err := services.Billing.ListTimeEntries(commandContext(cmd), args[0])
		if err != nil {
			return MapError(fmt.Errorf("failed to list time entries: %w", err))
		}
		if len(entries) == 0 {
			fmt.Printf("No time logged on %s.\n", args[0])
			return nil
		}

		total := billing.SumHours(entries)
		fmt.Printf("Time entries for %s:\n", args[0])
		for _, e := range entries {
			billable := ""
			if !e.IsBillable {
				billable = " (non-billable)"
			}
			fmt.Printf("  %s  %s  %7sh  %9s  %s%s\n", e.ID, e.Date.Format(billing.DateLayout), e.Hours.StringFixed(3), e.Amount.StringFixed(2), e.UserID, billable)
		}
		fmt.Printf("Total: %s hours\n", total.StringFixed(3))
		return nil
	},
}

var timeImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Log time entries from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		services.Housekeeping.RollOverdueTasks(ctx)

		result, err := services.Billing.ImportTimeEntries(ctx, user, data)
		if err != nil {
			return MapError(fmt.Errorf("failed to import time entries: %w", err))
		}

		fmt.Printf("Imported %d entries\n", len(result.Logged))
		for _, f := range result.Failed {
			fmt.Printf("  [FAILED] record %d: %s\n", f.Index, f.Error)
		}
		return nil
	},
}

var timeBudgetCmd = &cobra.Command{
	Use:   "budget [task-id]",
	Short: "Show how much of a task's budget is consumed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		user, err := actingUser(services)
		if err != nil {
			return err
		}
		status, rate, err := services.Billing.BudgetStatus(commandContext(cmd), user, args[0])
		if err != nil {
			return MapError(fmt.Errorf("failed to get budget status: %w", err))
		}

		fmt.Printf("Rate: %s/hr (%s)\n", rate.HourlyRate.StringFixed(2), rate.Source)
		printBudgetStatus(status)
		return nil
	},
}

var timeDate string
var timeHours string
var timeRate string
var timeDescription string
var timeNonBillable bool
var timeResolveRate bool

func init() {
	timeLogCmd.Flags().StringVar(&timeDate, "date", "", "Work date (YYYY-MM-DD, default: today)")
	timeLogCmd.Flags().StringVarP(&timeDescription, "description", "d", "", "What was done")
	timeLogCmd.Flags().StringVar(&timeRate, "rate", "", "Hourly rate override (default: resolved)")
	timeLogCmd.Flags().BoolVar(&timeNonBillable, "non-billable", false, "Exclude the entry from labor cost")

	timeEditCmd.Flags().StringVar(&timeHours, "hours", "", "New hours")
	timeEditCmd.Flags().StringVar(&timeDate, "date", "", "New work date (YYYY-MM-DD)")
	timeEditCmd.Flags().StringVarP(&timeDescription, "description", "d", "", "New description")
	timeEditCmd.Flags().StringVar(&timeRate, "rate", "", "New hourly rate")
	timeEditCmd.Flags().BoolVar(&timeResolveRate, "resolve-rate", false, "Re-resolve the hourly rate instead of keeping the stored one")
	timeEditCmd.Flags().BoolVar(&timeNonBillable, "non-billable", false, "Mark the entry non-billable (--non-billable=false to bill it)")

	timeCmd.AddCommand(timeLogCmd)
	timeCmd.AddCommand(timeEditCmd)
	timeCmd.AddCommand(timeRmCmd)
	timeCmd.AddCommand(timeListCmd)
	timeCmd.AddCommand(timeImportCmd)
	timeCmd.AddCommand(timeBudgetCmd)
	RootCmd.AddCommand(timeCmd)
}
