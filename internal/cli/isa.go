package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mvp-joe/static-reflection/internal/reflection"
	"github.com/mvp-joe/static-reflection/internal/registry"
	"github.com/spf13/cobra"
)

// isAOptions selects which ancestry question is asked.
type isAOptions struct {
	interfacesOnly bool
	directOnly     bool
	indexed        bool
}

var isAOpts isAOptions

// isACmd represents the is-a command
var isACmd = &cobra.Command{
	Use:   "is-a <class> <ancestor>",
	Short: "Check whether a class extends or implements an ancestor",
	Long: `Print true when the class has the ancestor anywhere in its inheritance
chain, false otherwise. Ancestors are resolved through project sources
first, then through the configured manifests.

With --indexed, only the fact store and manifests are consulted; no
source file is read.

Examples:
  static-reflection is-a 'App\Http\HomeController' 'App\Http\Controller'
  static-reflection is-a --interface 'App\Shop\Cart' Countable`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir, verbose)
		if err != nil {
			return err
		}
		defer p.Close()

		return runIsA(cmd.Context(), p, args[0], args[1], isAOpts, cmd.OutOrStdout())
	},
}

func init() {
	isACmd.Flags().BoolVar(&isAOpts.interfacesOnly, "interface", false, "only match implemented interfaces")
	isACmd.Flags().BoolVar(&isAOpts.directOnly, "direct", false, "only match ancestors named in the declaration itself")
	isACmd.Flags().BoolVar(&isAOpts.indexed, "indexed", false, "answer from the fact store without reading sources")
	rootCmd.AddCommand(isACmd)
}

func runIsA(ctx context.Context, p *project, className, ancestor string, opts isAOptions, w io.Writer) error {
	ancestor = strings.TrimPrefix(ancestor, reflection.NamespaceSeparator)

	var class *reflection.Class
	var err error
	if opts.indexed {
		class, err = indexedClass(p, className)
	} else {
		class, err = p.registry.Get(ctx, className)
	}
	if err != nil {
		return err
	}

	var result bool
	switch {
	case opts.directOnly:
		result, err = class.IsSubclassOfAny(ctx, []string{ancestor})
	case opts.interfacesOnly:
		result, err = class.ImplementsInterface(ctx, ancestor)
	default:
		result, err = class.IsSubclassOf(ctx, ancestor)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(w, result)
	return nil
}

// indexedClass builds a reflector from the stored record of className whose
// ancestors are looked up in the store and the manifests only.
func indexedClass(p *project, className string) (*reflection.Class, error) {
	if p.store == nil {
		return nil, fmt.Errorf("--indexed requires the fact store to be enabled")
	}

	entry, err := p.store.Lookup(strings.TrimPrefix(className, reflection.NamespaceSeparator))
	if err != nil {
		return nil, fmt.Errorf("failed to read stored facts: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s is not in the fact store, run 'static-reflection scan' first", registry.ErrClassNotFound, className)
	}

	lookups := []reflection.AncestorLookup{p.store}
	if p.manifest != nil {
		lookups = append(lookups, p.manifest)
	}
	ancestors := reflection.NewAncestorCache(registry.NewChainLookup(lookups...))

	return reflection.NewClass(entry.Facts.FQCN, entry.Path,
		reflection.WithFacts(entry.Facts),
		reflection.WithAncestorCache(ancestors),
	), nil
}
