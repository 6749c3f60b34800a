// Package cli implements the static-reflection command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "static-reflection",
	Short: "Static reflection for PHP classes",
	Long: `static-reflection answers reflection questions about PHP classes by
reading only the header of their source files: names, kinds, modifiers,
parents, interfaces, imports and doc comments. Nothing is executed or
autoloaded.

Class files are found through PSR-4 autoload mappings configured in
.reflect/config.yml under the project root.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "project root containing .reflect/config.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
