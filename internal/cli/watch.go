package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvp-joe/static-reflection/internal/discovery"
	"github.com/mvp-joe/static-reflection/internal/watcher"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan, then keep the fact store fresh as files change",
	Long: `Run a full scan, then watch the project for PHP file changes. Changed
files are re-parsed after a quiet period (watch.debounce_ms) and deleted
files are dropped from the fact store.

Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir, verbose)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := newProjectWatcher(p)
		if err != nil {
			return err
		}
		defer w.Stop()

		reporter := NewCLIProgressReporter(cmd.ErrOrStderr(), false, verbose)
		if err := scanAndWatch(ctx, p, w, reporter); err != nil {
			return err
		}

		log.Printf("Watching %s for changes...", p.root)
		<-ctx.Done()
		log.Printf("Stopping watcher...")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// scanAndWatch starts w paused, runs a full scan and then resumes it, so
// files edited while the scan runs are refreshed right after it.
func scanAndWatch(ctx context.Context, p *project, w watcher.FileWatcher, reporter ScanReporter) error {
	w.Pause()
	if err := w.Start(ctx, func(files []string) { onFilesChanged(ctx, p, files) }); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	if _, err := runScan(ctx, p, reporter); err != nil {
		return err
	}
	w.Resume()
	return nil
}

// newProjectWatcher watches the project root, skipping ignored directories
// and non-candidate files.
func newProjectWatcher(p *project) (watcher.FileWatcher, error) {
	w, err := watcher.NewFileWatcher([]string{p.root}, watcher.Options{
		Debounce: p.cfg.Watch.Debounce(),
		Filter:   p.discovery.Watches,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return w, nil
}

// onFilesChanged refreshes changed files and logs the outcome.
func onFilesChanged(ctx context.Context, p *project, files []string) {
	stats, err := refreshFiles(ctx, p, files)
	if err != nil {
		log.Printf("Refresh failed: %v", err)
		return
	}
	if p.verbose {
		log.Printf("Refreshed %d changed files", len(files))
	}
	for _, f := range stats.Failures {
		log.Printf("Skipping %s: %v", f.Path, f.Err)
	}
}

// refreshFiles invalidates everything derived from files and re-parses the
// ones that still exist.
func refreshFiles(ctx context.Context, p *project, files []string) (*ScanStats, error) {
	if err := p.registry.Invalidate(files...); err != nil {
		return nil, err
	}

	var candidates []discovery.Candidate
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if fqcn, ok := p.discovery.ExpectedFQCN(path); ok {
			candidates = append(candidates, discovery.Candidate{Path: path, ExpectedFQCN: fqcn})
		}
	}

	stats, err := loadCandidates(ctx, p, candidates, silentReporter{})
	if err != nil {
		return nil, err
	}
	stats.Files = len(candidates)
	return stats, nil
}

// silentReporter discards scan progress.
type silentReporter struct{}

func (silentReporter) OnDiscoveryStart() {}
func (silentReporter) OnDiscoveryComplete(int) {}
func (silentReporter) OnFileProcessed(string) {}
func (silentReporter) OnFileFailed(string, error) {}
func (silentReporter) OnComplete(*ScanStats) {}
