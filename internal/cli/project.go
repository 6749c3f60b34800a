package cli

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/mvp-joe/static-reflection/internal/config"
	"github.com/mvp-joe/static-reflection/internal/discovery"
	"github.com/mvp-joe/static-reflection/internal/registry"
	"github.com/mvp-joe/static-reflection/internal/storage"
)

// project bundles everything a command needs to reflect a project's classes.
type project struct {
	root      string
	cfg       *config.Config
	discovery *discovery.Discovery
	manifest  *registry.ManifestLookup // nil without manifests
	db        *sql.DB                  // nil when the store is disabled
	store     *storage.FactStore
	registry  *registry.Registry
	verbose   bool
}

// openProject loads the configuration under dir and wires the project.
func openProject(dir string, verbose bool) (*project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newProject(root, cfg, verbose)
}

// newProject wires discovery, manifests, the fact store and the registry
// for an absolute root.
func newProject(root string, cfg *config.Config, verbose bool) (*project, error) {
	disc, err := discovery.NewDiscovery(root, cfg.Autoload, cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery: %w", err)
	}

	p := &project{
		root:      root,
		cfg:       cfg,
		discovery: disc,
		verbose:   verbose,
	}
	opts := []registry.Option{registry.WithVerbose(verbose)}

	if paths := cfg.ManifestPathsFor(root); len(paths) > 0 {
		manifest, err := registry.LoadManifests(paths...)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifests: %w", err)
		}
		p.manifest = manifest
		opts = append(opts, registry.WithFallbacks(manifest))
	}

	if cfg.Cache.StoreEnabled {
		db, err := storage.Open(cfg.StorePathFor(root))
		if err != nil {
			return nil, fmt.Errorf("failed to open fact store: %w", err)
		}
		p.db = db
		p.store = storage.NewFactStore(db)
		opts = append(opts, registry.WithStore(p.store))
	}

	p.registry, err = registry.New(disc, cfg.Cache.RegistryCapacity, opts...)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	return p, nil
}

// Close releases the registry and the fact store.
func (p *project) Close() error {
	if p.registry != nil {
		p.registry.Close()
	}
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// absPath resolves a command line path against the working directory.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}
