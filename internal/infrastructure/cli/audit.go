package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit and verify billing history",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		fmt.Println("Verifying audit trail integrity...")
		violations, err := services.Audit.VerifyIntegrity(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		if len(violations) == 0 {
			fmt.Println("Audit trail is intact and verified.")
			return nil
		}

		fmt.Printf("Found %d integrity violations:\n", len(violations))
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		cliErr := NewCLIError("audit trail has been tampered with", "Restore the database from a backup", nil)
		cliErr.ExitCode = 2
		return cliErr
	},
}

var auditTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show a chronological view of billing activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		events, err := services.Audit.GetTimeline(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("failed to load timeline: %w", err)
		}

		fmt.Println("Billing Timeline")
		fmt.Println("------------------")
		for i := len(events) - 1; i >= 0; i-- {
			e := events[i]
			fmt.Printf("[%s] %-15s | %-22s", e.Timestamp.Format(time.RFC822), e.Actor, e.Action)
			if len(e.Metadata) > 0 {
				keys := make([]string, 0, len(e.Metadata))
				for k := range e.Metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				pairs := make([]string, 0, len(keys))
				for _, k := range keys {
					pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Metadata[k]))
				}
				fmt.Printf(" (%s)", strings.Join(pairs, " "))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTimelineCmd)
	RootCmd.AddCommand(auditCmd)
}
