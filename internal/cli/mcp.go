package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/mcp"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio transport)",
	Long: `Start the MCP (Model Context Protocol) server using stdio transport.

This lets AI assistants detect and merge duplicates, inspect feedback keywords,
score offers and trigger pipeline runs.

Add to your MCP client config:

{
  "mcpServers": {
    "jobrank": {
      "command": "/path/to/jobrank",
      "args": ["mcp"]
    }
  }
}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	// Check if MCP is enabled
	if !cfg.MCP.Enabled {
		return fmt.Errorf("MCP server is disabled in config")
	}

	res, err := pipeline.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer res.Close()

	server := mcp.New(cfg, res, pipeline.NewRunner(cfg, log), version, log)
	return server.Start(ctx)
}
