package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var docRaw bool

// docCmd represents the doc command
var docCmd = &cobra.Command{
	Use:   "doc <class>",
	Short: "Print the doc comment summary and annotations of a class",
	Long: `Print the summary paragraph of a class's doc comment followed by its
single-line annotations, one per line and sorted by tag.

Example:
  static-reflection doc 'App\Shop\Cart'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir, verbose)
		if err != nil {
			return err
		}
		defer p.Close()

		return runDoc(cmd.Context(), p, args[0], docRaw, cmd.OutOrStdout())
	},
}

func init() {
	docCmd.Flags().BoolVar(&docRaw, "raw", false, "print the comment block as written")
	rootCmd.AddCommand(docCmd)
}

func runDoc(ctx context.Context, p *project, className string, raw bool, w io.Writer) error {
	class, err := p.registry.Get(ctx, className)
	if err != nil {
		return err
	}

	doc, err := class.Doc(ctx)
	if err != nil {
		return err
	}
	if raw {
		fmt.Fprintln(w, doc.Raw())
		return nil
	}

	parsed := doc.Parse()
	if parsed.Summary != "" {
		fmt.Fprintln(w, parsed.Summary)
	}

	tags := make([]string, 0, len(parsed.Annotations))
	for tag := range parsed.Annotations {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	if len(tags) > 0 && parsed.Summary != "" {
		fmt.Fprintln(w)
	}
	for _, tag := range tags {
		for _, value := range parsed.Annotations[tag] {
			if value == "" {
				fmt.Fprintf(w, "@%s\n", tag)
				continue
			}
			fmt.Fprintf(w, "@%s %s\n", tag, value)
		}
	}
	return nil
}
