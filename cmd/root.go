// Package cmd wires the command-line interface. The root command starts
// the MCP server on stdio; subcommands cover migrations and version info.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/teamrecall/recall/internal/app"
	"github.com/teamrecall/recall/internal/config"
	"github.com/teamrecall/recall/internal/mcp"
)

const serverName = "recall"

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Team knowledge base MCP server",
	Long: `recall persists conversations and notes with vector embeddings and
serves them back through semantic search, as MCP tools over stdio.

Point your MCP client (Claude Desktop, Cursor, ...) at this binary.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// runServe initializes the application and serves MCP over stdio until
// the transport closes or a signal arrives.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()
	slog.SetDefault(a.Logger)

	server, err := mcp.NewServer(mcp.Config{
		Name:    serverName,
		Version: AppVersion,
		Service: a.Service,
		Logger:  a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	a.Logger.Info("MCP server ready", "name", serverName, "version", AppVersion, "transport", "stdio")

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	a.Logger.Info("MCP server shut down gracefully")
	return nil
}
