package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reneee98/layers/pkg/domain/billing"
)

var financeCmd = &cobra.Command{
	Use:   "finance",
	Short: "Report cost, revenue and profit",
}

var financeProjectCmd = &cobra.Command{
	Use:   "project [project-id]",
	Short: "Profitability of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		snap, err := services.Finance.ProjectFinance(commandContext(cmd), args[0])
		if err != nil {
			return MapError(fmt.Errorf("failed to compute project finance: %w", err))
		}
		return writeFinance(snap, services.Workspace.Config.Currency)
	},
}

var financeTaskCmd = &cobra.Command{
	Use:   "task [task-id]",
	Short: "Profitability of a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		snap, err := services.Finance.TaskFinance(commandContext(cmd), args[0])
		if err != nil {
			return MapError(fmt.Errorf("failed to compute task finance: %w", err))
		}
		return writeFinance(snap, services.Workspace.Config.Currency)
	},
}

func writeFinance(snap *billing.FinanceSnapshot, currency string) error {
	out, err := renderFinance(snap, currency, financeFormat)
	if err != nil {
		return err
	}
	if financeOutput == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(financeOutput, []byte(out+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("Report written to %s\n", financeOutput)
	return nil
}

func renderFinance(snap *billing.FinanceSnapshot, currency, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return financeText(snap, currency), nil
	case "json":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode report: %w", err)
		}
		return string(data), nil
	case "csv":
		return snap.CSV(), nil
	case "markdown", "md":
		return financeMarkdown(snap, currency), nil
	default:
		return "", NewCLIError(fmt.Sprintf("unsupported format %q", format), "Use text, json, csv or markdown", nil)
	}
}

var financeTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

var financeBoxStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
var lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
var mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

func financeText(snap *billing.FinanceSnapshot, currency string) string {
	money := func(amount string) string { return amount + " " + currency }
	profit := profitStyle
	if snap.Profit.IsNegative() {
		profit = lossStyle
	}

	rows := []string{
		fmt.Sprintf("Hours:         %s (%s billable)", snap.TotalHours.StringFixed(billing.HoursPlaces), snap.BillableHours.StringFixed(billing.HoursPlaces)),
		fmt.Sprintf("Labor cost:    %s", money(snap.LaborCost.StringFixed(billing.AmountPlaces))),
		fmt.Sprintf("External cost: %s", money(snap.ExternalCost.StringFixed(billing.AmountPlaces))),
		fmt.Sprintf("Budget:        %s", money(snap.BudgetAmount.StringFixed(billing.AmountPlaces))),
		profit.Render(fmt.Sprintf("Profit:        %s (%s%%)", money(snap.Profit.StringFixed(billing.AmountPlaces)), snap.ProfitPct.StringFixed(1))),
	}

	var b strings.Builder
	b.WriteString(financeTitleStyle.Render(fmt.Sprintf("Finance: %s %s", snap.Scope, snap.ScopeID)))
	b.WriteString("\n")
	b.WriteString(financeBoxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if len(snap.DailyData) == 0 {
		b.WriteString(mutedStyle.Render("No activity recorded."))
		return b.String()
	}
	b.WriteString("Daily\n")
	for _, d := range snap.DailyData {
		fmt.Fprintf(&b, "  %s  %8sh  labor %10s  external %10s\n", d.Date,
			d.Hours.StringFixed(billing.HoursPlaces), d.LaborCost.StringFixed(billing.AmountPlaces), d.ExternalCost.StringFixed(billing.AmountPlaces))
	}
	return strings.TrimRight(b.String(), "\n")
}

func financeMarkdown(snap *billing.FinanceSnapshot, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Finance: %s %s\n\n", snap.Scope, snap.ScopeID)
	fmt.Fprintf(&b, "| Metric | Value (%s) |\n|---|---|\n", currency)
	fmt.Fprintf(&b, "| Labor cost | %s |\n", snap.LaborCost.StringFixed(billing.AmountPlaces))
	fmt.Fprintf(&b, "| External cost | %s |\n", snap.ExternalCost.StringFixed(billing.AmountPlaces))
	fmt.Fprintf(&b, "| Budget | %s |\n", snap.BudgetAmount.StringFixed(billing.AmountPlaces))
	fmt.Fprintf(&b, "| Profit | %s |\n", snap.Profit.StringFixed(billing.AmountPlaces))
	fmt.Fprintf(&b, "| Profit %% | %s |\n", snap.ProfitPct.StringFixed(1))

	if len(snap.DailyData) > 0 {
		b.WriteString("\n| Date | Hours | Labor | External | Revenue |\n|---|---|---|---|---|\n")
		for _, d := range snap.DailyData {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", d.Date, d.Hours.StringFixed(billing.HoursPlaces),
				d.LaborCost.StringFixed(billing.AmountPlaces), d.ExternalCost.StringFixed(billing.AmountPlaces), d.TotalRevenue.StringFixed(billing.AmountPlaces))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var financeFormat string
var financeOutput string

func init() {
	for _, c := range []*cobra.Command{financeProjectCmd, financeTaskCmd} {
		c.Flags().StringVar(&financeFormat, "format", "text", "Output format (text, json, csv, markdown)")
		c.Flags().StringVarP(&financeOutput, "output", "o", "", "Write the report to a file")
		financeCmd.AddCommand(c)
	}
	RootCmd.AddCommand(financeCmd)
}
