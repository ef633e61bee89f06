package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	projectPath string
	userFlag    string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "layers",
	Version: Version,
	Short:   "Time tracking and billing for project work",
	Long: `Layers tracks time against tasks and prices it.
It answers:
1. Which hourly rate applies to this work?
2. How much of the task budget is left?
3. Is the project profitable?`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	// Money is printed as plain JSON numbers in reports.
	decimal.MarshalJSONWithoutQuotes = true

	RootCmd.PersistentFlags().StringVar(&projectPath, "path", "", "Workspace directory (default: current directory)")
	RootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Acting user (default: LAYERS_USER or config)")
}
