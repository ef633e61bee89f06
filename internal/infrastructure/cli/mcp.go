package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	inframcp "github.com/reneee98/layers/internal/infrastructure/mcp"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Layers MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("LAYERS_SKIP_MCP_START") == "true" {
			return nil
		}
		root, err := getProjectRoot()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inframcp.Version = Version
		inframcp.BuildCommit = Commit
		inframcp.BuildDate = Date
		server, err := inframcp.NewServer(ctx, root)
		if err != nil {
			return MapError(fmt.Errorf("failed to initialize server: %w", err))
		}
		defer server.Close()

		switch strings.ToLower(mcpTransport) {
		case "stdio", "":
			err = server.ServeStdio(ctx)
		case "http":
			err = server.ServeHTTP(ctx, mcpAddr)
		case "ws", "websocket":
			err = server.ServeWebSocket(ctx, mcpAddr)
		default:
			err = NewCLIError(fmt.Sprintf("unsupported transport: %s", mcpTransport), "Use stdio, http or ws", nil)
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for http/ws transports")
	RootCmd.AddCommand(mcpCmd)
}
