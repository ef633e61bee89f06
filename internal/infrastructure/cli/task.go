package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		in := application.AddTaskInput{
			ID:        taskID,
			ProjectID: taskProject,
			Title:     args[0],
			DueDate:   taskDue,
		}
		if in.Budget, err = parseMoney("budget", taskBudget); err != nil {
			return err
		}
		if in.EstimatedHours, err = parseMoney("estimate", taskEstimate); err != nil {
			return err
		}
		if in.HourlyRate, err = parseMoney("rate", taskRate); err != nil {
			return err
		}
		actor, _ := actingUser(services)

		t, err := services.Catalog.AddTask(commandContext(cmd), actor, in)
		if err != nil {
			return MapError(fmt.Errorf("failed to add task: %w", err))
		}
		fmt.Printf("Added task: %s (%s)\n", t.ID, t.Title)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show a task with its budget status",
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
		t, err := services.Catalog.GetTask(commandContext(cmd), args[0])
		if err != nil {
			return MapError(err)
		}
		status, rate, err := services.Billing.BudgetStatus(commandContext(cmd), user, t.ID)
		if err != nil {
			return MapError(err)
		}

		fmt.Printf("Task: %s (%s) [%s]\n", t.ID, t.Title, t.Status)
		if t.ProjectID != "" {
			fmt.Printf("Project: %s\n", t.ProjectID)
		}
		if t.DueDate != nil {
			fmt.Printf("Due: %s\n", t.DueDate.Format(billing.DateLayout))
		}
		fmt.Printf("Rate: %s/hr (%s)\n", rate.HourlyRate.StringFixed(2), rate.Source)
		printBudgetStatus(status)
		return nil
	},
}

var taskRecalcCmd = &cobra.Command{
	Use:   "recalc [task-id]",
	Short: "Resum a task's actual hours from its time entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := commandContext(cmd)
		services.Billing.RecalculateActualHours(ctx, args[0])
		t, err := services.Catalog.GetTask(ctx, args[0])
		if err != nil {
			return MapError(err)
		}
		fmt.Printf("Task %s: %s actual hours\n", t.ID, t.ActualHours.StringFixed(3))
		return nil
	},
}

func printBudgetStatus(status *billing.BudgetStatus) {
	if status.CeilingHours.IsZero() {
		fmt.Printf("Logged: %s hours (no budget ceiling)\n", status.UsedHours.String())
		return
	}
	fmt.Printf("Budget Status\n")
	fmt.Printf("=============\n")
	fmt.Printf("Ceiling:   %s hours\n", status.CeilingHours.StringFixed(3))
	fmt.Printf("Used:      %s hours\n", status.UsedHours.StringFixed(3))
	fmt.Printf("Remaining: %s hours\n", status.RemainingHours.StringFixed(3))
	fmt.Printf("Used:      %s%%\n", status.PercentUsed.StringFixed(1))
	if status.OverBudget {
		fmt.Printf("\n[WARNING] Over budget by %s hours!\n", status.RemainingHours.Neg().StringFixed(3))
	}
}

var taskID string
var taskProject string
var taskBudget string
var taskEstimate string
var taskRate string
var taskDue string

func init() {
	taskAddCmd.Flags().StringVar(&taskID, "id", "", "Task ID (default: generated)")
	taskAddCmd.Flags().StringVar(&taskProject, "project", "", "Project the task belongs to")
	taskAddCmd.Flags().StringVar(&taskBudget, "budget", "", "Fixed budget amount")
	taskAddCmd.Flags().StringVar(&taskEstimate, "estimate", "", "Estimated hours")
	taskAddCmd.Flags().StringVar(&taskRate, "rate", "", "Task hourly rate (used only outside a project)")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskRecalcCmd)
	RootCmd.AddCommand(taskCmd)
}
