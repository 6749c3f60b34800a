package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the declaration facts of a PHP file as JSON",
	Long: `Read the header of a PHP file and print what it declares: the fully
qualified name, kind, modifiers, resolved parents and interfaces, use
imports and doc comment.

Files under a PSR-4 root must declare the class their path implies.

Example:
  static-reflection inspect src/Shop/Cart.php`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir, verbose)
		if err != nil {
			return err
		}
		defer p.Close()

		return runInspect(cmd.Context(), p, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(ctx context.Context, p *project, file string, w io.Writer) error {
	path, err := absPath(file)
	if err != nil {
		return err
	}

	facts, err := p.registry.Inspect(path).Facts(ctx)
	if err != nil {
		return err
	}
	if !facts.Found() {
		return fmt.Errorf("%s declares no class, interface or trait", file)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(facts)
}
