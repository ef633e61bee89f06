package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/reneee98/layers/internal/infrastructure/mcp"
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Generate an OpenAPI 3.0 spec from MCP tool registrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		srv, err := mcpserver.NewServer(context.Background(), root)
		if err != nil {
			return MapError(fmt.Errorf("failed to initialize server: %w", err))
		}
		defer srv.Close()

		data, err := srv.OpenAPI()
		if err != nil {
			return MapError(fmt.Errorf("failed to generate OpenAPI spec: %w", err))
		}

		fmt.Println(string(data))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(openapiCmd)
}
