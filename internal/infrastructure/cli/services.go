package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/reneee98/layers/internal/infrastructure/wiring"
)

func loadServices(root string) (*wiring.AppServices, error) {
	services, err := wiring.BuildAppServices(context.Background(), root)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	return services, nil
}

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid project path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("project path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("project path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

func loadServicesForCurrentDir() (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	return loadServices(root)
}

// actingUser returns the --user flag or the configured user.
func actingUser(services *wiring.AppServices) (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	if u := services.Workspace.Config.User; u != "" {
		return u, nil
	}
	return "", NewCLIError("no acting user", "Pass --user or set LAYERS_USER", nil)
}

// parseMoney parses an optional decimal flag. Empty means unset.
func parseMoney(flag, value string) (*decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, NewCLIError(fmt.Sprintf("invalid --%s %q", flag, value), "Use a decimal number such as 62.50", err)
	}
	return &d, nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
