package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mvp-joe/static-reflection/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpNoWatch bool

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for PHP class reflection",
	Long: `Start the Model Context Protocol (MCP) server that lets LLM-powered
coding assistants ask about the PHP classes of this project.

The MCP server:
- Provides php_class_facts, php_is_subclass_of and php_doc_comment tools
- Reuses facts stored by 'static-reflection scan' for unchanged files
- Watches the project so answers follow edits
- Communicates via stdio (standard MCP transport)

Example:
  static-reflection mcp`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpNoWatch, "no-watch", false, "do not watch the project for changes")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := openProject(rootDir, verbose)
	if err != nil {
		return err
	}
	defer p.Close()

	// stdout carries the protocol; everything else goes to stderr
	fmt.Fprintf(os.Stderr, "Static Reflection MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project Root: %s\n", p.root)
	if p.store != nil {
		fmt.Fprintf(os.Stderr, "Fact Store: %s\n", p.cfg.StorePathFor(p.root))
	}
	fmt.Fprintf(os.Stderr, "\n")

	var opts []mcp.ServerOption
	if !mcpNoWatch {
		w, err := newProjectWatcher(p)
		if err != nil {
			return err
		}
		opts = append(opts, mcp.WithWatcher(w, func(files []string) {
			onFilesChanged(ctx, p, files)
		}))
	}

	server := mcp.NewServer(p.registry, opts...)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
