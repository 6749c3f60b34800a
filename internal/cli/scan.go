package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mvp-joe/static-reflection/internal/discovery"
	"github.com/mvp-joe/static-reflection/internal/registry"
	"github.com/mvp-joe/static-reflection/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ScanFailure is a file that could not be parsed. It is skipped, not fatal.
type ScanFailure struct {
	Path string
	Err  error
}

// ScanStats summarizes a scan.
type ScanStats struct {
	Files        int // candidates discovered
	Declarations int // files that declared a class, interface or trait
	Stored       int // records in the fact store afterwards
	Pruned       int // stored records whose file no longer exists
	Written      int // records written to the fact store by this scan
	CacheHits    int64
	CacheMisses  int64
	Failures     []ScanFailure
	Duration     time.Duration
}

var scanQuiet bool

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Parse every class file and refresh the fact store",
	Long: `Discover class files through the PSR-4 autoload mappings, parse their
headers and store the facts in .reflect/facts.db. Files whose modification
time and size are unchanged reuse their stored facts.

Files that cannot be read or that declare a different class than their
path implies are reported and skipped.

Example:
  static-reflection scan`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir, verbose)
		if err != nil {
			return err
		}
		defer p.Close()

		reporter := NewCLIProgressReporter(cmd.ErrOrStderr(), scanQuiet, verbose)
		_, err = runScan(cmd.Context(), p, reporter)
		return err
	},
}

func init() {
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(scanCmd)
}

// runScan discovers and loads every candidate, then drops stored records
// of files that are gone.
func runScan(ctx context.Context, p *project, reporter ScanReporter) (*ScanStats, error) {
	start := time.Now()

	reporter.OnDiscoveryStart()
	candidates, err := p.discovery.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover class files: %w", err)
	}
	reporter.OnDiscoveryComplete(len(candidates))

	stats, err := loadCandidates(ctx, p, candidates, reporter)
	if err != nil {
		return nil, err
	}
	stats.Files = len(candidates)

	if p.store != nil {
		if stats.Pruned, err = pruneStore(p.store, candidates); err != nil {
			return nil, err
		}
		if stats.Stored, err = p.store.Count(); err != nil {
			return nil, fmt.Errorf("failed to count stored facts: %w", err)
		}
		if err := storage.SetMetadata(p.db, "last_scanned", strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
			return nil, fmt.Errorf("failed to record scan time: %w", err)
		}
	}

	stats.CacheHits, stats.CacheMisses = p.registry.Stats()
	stats.Duration = time.Since(start)
	reporter.OnComplete(stats)
	return stats, nil
}

// loadCandidates parses candidates in parallel and writes the fresh records
// in one transaction. Per-file failures are collected; only cancellation
// and store write failures abort the scan.
func loadCandidates(ctx context.Context, p *project, candidates []discovery.Candidate, reporter ScanReporter) (*ScanStats, error) {
	stats := &ScanStats{}
	batch := &registry.Batch{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, c := range candidates {
		g.Go(func() error {
			facts, err := p.registry.LoadBatched(gctx, c, batch)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if p.store != nil {
					if delErr := p.store.Delete(c.Path); delErr != nil && p.verbose {
						log.Printf("failed to drop stored facts for %s: %v", c.Path, delErr)
					}
				}
				mu.Lock()
				stats.Failures = append(stats.Failures, ScanFailure{Path: c.Path, Err: err})
				mu.Unlock()
				reporter.OnFileFailed(c.Path, err)
				return nil
			}

			if facts.Found() {
				mu.Lock()
				stats.Declarations++
				mu.Unlock()
			}
			reporter.OnFileProcessed(c.Path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Written = batch.Len()
	if err := p.registry.Flush(batch); err != nil {
		return nil, err
	}

	sort.Slice(stats.Failures, func(i, j int) bool {
		return stats.Failures[i].Path < stats.Failures[j].Path
	})
	return stats, nil
}

// pruneStore deletes stored records for files that are no longer candidates.
func pruneStore(store *storage.FactStore, candidates []discovery.Candidate) (int, error) {
	entries, err := store.All()
	if err != nil {
		return 0, fmt.Errorf("failed to list stored facts: %w", err)
	}

	live := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		live[c.Path] = true
	}

	var stale []string
	for _, e := range entries {
		if !live[e.Path] {
			stale = append(stale, e.Path)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := store.Delete(stale...); err != nil {
		return 0, fmt.Errorf("failed to prune stored facts: %w", err)
	}
	return len(stale), nil
}
