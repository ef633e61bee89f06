package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/reneee98/layers/internal/infrastructure/watch"
	"github.com/reneee98/layers/pkg/application"
	"github.com/reneee98/layers/pkg/domain/billing"
	"github.com/reneee98/layers/pkg/storage"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Manage hourly rates",
}

var rateAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rate rule for a user and/or project",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		amount, err := parseMoney("rate", rateAmount)
		if err != nil {
			return err
		}
		if amount == nil {
			return NewCLIError("--rate is required", "Pass the hourly rate, e.g. --rate 62.50", nil)
		}
		actor, _ := actingUser(services)

		rule, err := services.Rates.AddRule(commandContext(cmd), actor, application.AddRateRuleInput{
			ID:         rateID,
			Name:       rateName,
			UserID:     rateUser,
			ProjectID:  rateProject,
			HourlyRate: *amount,
			ValidFrom:  rateFrom,
			ValidTo:    rateTo,
			IsDefault:  rateDefault,
		})
		if err != nil {
			return MapError(fmt.Errorf("failed to add rate: %w", err))
		}

		fmt.Printf("Added rate: %s (%s) - %s/hr\n", rule.ID, rule.Name, rule.HourlyRate().StringFixed(2))
		return nil
	},
}

var rateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rate rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		rules, err := services.Rates.ListRules(commandContext(cmd))
		if err != nil {
			return MapError(fmt.Errorf("failed to list rates: %w", err))
		}

		if len(rules) == 0 {
			fmt.Println("No rates configured. Use 'layers rate add' to add a rate.")
			return nil
		}

		fmt.Printf("Currency: %s\n", services.Workspace.Config.Currency)
		fmt.Println("\nRates:")
		for _, r := range rules {
			defaultMark := ""
			if r.IsDefault {
				defaultMark = " (default)"
			}
			fmt.Printf("  %s: %s - %s/hr [%s]%s\n", r.ID, r.Name, r.HourlyRate().StringFixed(2), ruleScope(r), defaultMark)
		}
		return nil
	},
}

func ruleScope(r billing.RateRule) string {
	var parts []string
	if r.UserID != "" {
		parts = append(parts, "user="+r.UserID)
	}
	if r.ProjectID != "" {
		parts = append(parts, "project="+r.ProjectID)
	}
	window := r.ValidFrom.Format(billing.DateLayout) + ".."
	if r.ValidTo != nil {
		window += r.ValidTo.Format(billing.DateLayout)
	}
	return strings.Join(append(parts, window), " ")
}

var rateResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which hourly rate applies and where it comes from",
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
		res := services.Rates.Resolve(commandContext(cmd), user, billing.RateContext{
			ProjectID: rateProject,
			TaskID:    rateTask,
		})
		fmt.Printf("Rate: %s/hr\n", res.HourlyRate.StringFixed(2))
		fmt.Printf("Source: %s\n", res.Source)
		if res.IsFallback() {
			fmt.Println("\n[WARNING] No rate configured; time will be priced at zero.")
		}
		return nil
	},
}

// parseRateArg accepts a decimal or "none" to clear a rate.
func parseRateArg(value string) (*decimal.Decimal, error) {
	if strings.EqualFold(value, "none") {
		return nil, nil
	}
	d, err := parseMoney("rate", value)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, NewCLIError("rate is required", "Pass a decimal rate or 'none' to clear it", nil)
	}
	return d, nil
}

func describeRate(rate *decimal.Decimal) string {
	if rate == nil {
		return "cleared"
	}
	return rate.StringFixed(2) + "/hr"
}

var rateSetProjectCmd = &cobra.Command{
	Use:   "set-project [project-id] [rate|none]",
	Short: "Set a project's default hourly rate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := parseRateArg(args[1])
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		actor, _ := actingUser(services)

		if err := services.Rates.SetProjectRate(commandContext(cmd), actor, args[0], rate); err != nil {
			return MapError(fmt.Errorf("failed to set project rate: %w", err))
		}
		fmt.Printf("Project %s rate: %s\n", args[0], describeRate(rate))
		return nil
	},
}

var rateSetTaskCmd = &cobra.Command{
	Use:   "set-task [task-id] [rate|none]",
	Short: "Set a task's hourly rate (applies only to tasks without a project)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := parseRateArg(args[1])
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		actor, _ := actingUser(services)

		if err := services.Rates.SetTaskRate(commandContext(cmd), actor, args[0], rate); err != nil {
			return MapError(fmt.Errorf("failed to set task rate: %w", err))
		}
		fmt.Printf("Task %s rate: %s\n", args[0], describeRate(rate))
		return nil
	},
}

var rateSetUserCmd = &cobra.Command{
	Use:   "set-user [user-id] [rate|none]",
	Short: "Set a user's account default hourly rate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := parseRateArg(args[1])
		if err != nil {
			return err
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		actor, _ := actingUser(services)

		if err := services.Rates.SetUserRate(commandContext(cmd), actor, args[0], rate); err != nil {
			return MapError(fmt.Errorf("failed to set user rate: %w", err))
		}
		fmt.Printf("User %s rate: %s\n", args[0], describeRate(rate))
		return nil
	},
}

var rateSetMemberCmd = &cobra.Command{
	Use:   "set-member [project-id] [user-id] [rate|none]",
	Short: "Add a user to a project with an optional member rate",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rate *decimal.Decimal
		if len(args) == 3 {
			var err error
			if rate, err = parseRateArg(args[2]); err != nil {
				return err
			}
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()
		actor, _ := actingUser(services)

		if err := services.Rates.SetMemberRate(commandContext(cmd), actor, args[0], args[1], rate); err != nil {
			return MapError(fmt.Errorf("failed to set member rate: %w", err))
		}
		fmt.Printf("Member %s on %s rate: %s\n", args[1], args[0], describeRate(rate))
		return nil
	},
}

var rateSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load rate rules from a rates file",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		path := ratesFileFor(services.Workspace.Root)
		ctx := commandContext(cmd)
		n, err := services.Rates.SyncRulesFromFile(ctx, path)
		if err != nil {
			return MapError(fmt.Errorf("failed to sync rates: %w", err))
		}
		fmt.Printf("Synced %d rate rules from %s\n", n, path)

		if !rateWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchRates(ctx, services.Rates, path)
	},
}

func watchRates(ctx context.Context, rates *application.RateService, path string) error {
	w, err := watch.NewFileWatcher(0, func(e watch.ChangeEvent) {
		if msg := resyncRates(ctx, rates, e); msg != "" {
			fmt.Println(msg)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		return err
	}

	fmt.Printf("Watching %s for changes...\n", path)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// resyncRates handles one watcher event and returns the line to report, or
// "" when the event is ignored.
func resyncRates(ctx context.Context, rates *application.RateService, e watch.ChangeEvent) string {
	if e.ChangeType == "remove" || e.ChangeType == "rename" {
		return ""
	}
	n, err := rates.SyncRulesFromFile(ctx, e.Path)
	if errors.Is(err, billing.ErrRatesFileNotFound) {
		// Editors replace files by rename; the next write event resyncs.
		return ""
	}
	if err != nil {
		return fmt.Sprintf("Sync failed: %v", err)
	}
	return fmt.Sprintf("Rates file changed: synced %d rules", n)
}

var rateExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored rate rules to a rates file",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		path := ratesFileFor(services.Workspace.Root)
		n, err := services.Rates.ExportRulesToFile(commandContext(cmd), path, services.Workspace.Config.Currency)
		if err != nil {
			return MapError(fmt.Errorf("failed to export rates: %w", err))
		}
		fmt.Printf("Exported %d rate rules to %s\n", n, path)
		return nil
	},
}

func ratesFileFor(root string) string {
	if rateFile == "" {
		return storage.RatesFilePath(root)
	}
	if filepath.IsAbs(rateFile) {
		return rateFile
	}
	return filepath.Join(root, rateFile)
}

var rateID string
var rateName string
var rateAmount string
var rateUser string
var rateProject string
var rateTask string
var rateFrom string
var rateTo string
var rateDefault bool
var rateFile string
var rateWatch bool

func init() {
	rateAddCmd.Flags().StringVar(&rateID, "id", "", "Rule ID (default: generated)")
	rateAddCmd.Flags().StringVar(&rateName, "name", "", "Rule name (e.g., Senior Developer)")
	rateAddCmd.Flags().StringVar(&rateAmount, "rate", "", "Hourly rate amount")
	rateAddCmd.Flags().StringVar(&rateUser, "for-user", "", "User the rule applies to")
	rateAddCmd.Flags().StringVar(&rateProject, "project", "", "Project the rule applies to")
	rateAddCmd.Flags().StringVar(&rateFrom, "from", "", "First day the rule is valid (YYYY-MM-DD)")
	rateAddCmd.Flags().StringVar(&rateTo, "to", "", "Last day the rule is valid (YYYY-MM-DD, default: open-ended)")
	rateAddCmd.Flags().BoolVar(&rateDefault, "default", false, "Prefer this rule over other matches")
	_ = rateAddCmd.MarkFlagRequired("rate")
	_ = rateAddCmd.MarkFlagRequired("from")

	rateResolveCmd.Flags().StringVar(&rateProject, "project", "", "Project context")
	rateResolveCmd.Flags().StringVar(&rateTask, "task", "", "Task context")

	for _, c := range []*cobra.Command{rateSyncCmd, rateExportCmd} {
		c.Flags().StringVar(&rateFile, "file", "", "Rates file (default: .layers/rates.yaml)")
	}
	rateSyncCmd.Flags().BoolVar(&rateWatch, "watch", false, "Keep running and re-sync when the file changes")

	rateCmd.AddCommand(rateAddCmd)
	rateCmd.AddCommand(rateListCmd)
	rateCmd.AddCommand(rateResolveCmd)
	rateCmd.AddCommand(rateSetProjectCmd)
	rateCmd.AddCommand(rateSetTaskCmd)
	rateCmd.AddCommand(rateSetUserCmd)
	rateCmd.AddCommand(rateSetMemberCmd)
	rateCmd.AddCommand(rateSyncCmd)
	rateCmd.AddCommand(rateExportCmd)
	RootCmd.AddCommand(rateCmd)
}
