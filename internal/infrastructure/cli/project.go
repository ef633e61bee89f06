package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/domain/billing"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [project-id]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		rate, err := parseMoney("rate", projectRate)
		if err != nil {
			return err
		}
		name := projectName
		if name == "" {
			name = args[0]
		}
		actor, _ := actingUser(services)

		p, err := services.Catalog.AddProject(commandContext(cmd), actor, args[0], name, rate)
		if err != nil {
			return MapError(fmt.Errorf("failed to add project: %w", err))
		}
		fmt.Printf("Added project: %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		p, err := services.Catalog.GetProject(commandContext(cmd), args[0])
		if err != nil {
			return MapError(err)
		}
		tasks, err := services.Workspace.Repo.ListTasksByProject(commandContext(cmd), p.ID)
		if err != nil {
			return MapError(fmt.Errorf("failed to list tasks: %w", err))
		}

		fmt.Printf("Project: %s (%s)\n", p.ID, p.Name)
		if p.HourlyRateCents != nil {
			fmt.Printf("Default rate: %s/hr\n", billing.CentsToDecimal(p.HourlyRateCents).StringFixed(2))
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks. Use 'layers task add' to add one.")
			return nil
		}
		fmt.Println("\nTasks:")
		for _, t := range tasks {
			fmt.Printf("  %s: %s [%s] %sh logged\n", t.ID, t.Title, t.Status, t.ActualHours.String())
		}
		return nil
	},
}

var projectName string
var projectRate string

func init() {
	projectAddCmd.Flags().StringVar(&projectName, "name", "", "Project name (default: the ID)")
	projectAddCmd.Flags().StringVar(&projectRate, "rate", "", "Default hourly rate for the project")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectShowCmd)
	RootCmd.AddCommand(projectCmd)
}
