package cli

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ScanReporter receives scan progress events.
type ScanReporter interface {
	OnDiscoveryStart()
	OnDiscoveryComplete(files int)
	OnFileProcessed(path string)
	OnFileFailed(path string, err error)
	OnComplete(stats *ScanStats)
}

// CLIProgressReporter implements progress reporting with a progress bar.
type CLIProgressReporter struct {
	quiet   bool
	verbose bool
	out     io.Writer
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet, verbose bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:   quiet,
		verbose: verbose,
		out:     out,
	}
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	log.Println("Discovering class files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	log.Printf("Scanning %d class files\n", files)

	c.fileBar = progressbar.NewOptions(files,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Parsing headers"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(path string) {
	if c.quiet || c.fileBar == nil {
		return
	}
	c.fileBar.Add(1)
}

// OnFileFailed counts the file as processed. Failures are listed in full by
// OnComplete; verbose mode also logs them as they happen.
func (c *CLIProgressReporter) OnFileFailed(path string, err error) {
	if c.verbose {
		log.Printf("Skipping %s: %v", path, err)
	}
	c.OnFileProcessed(path)
}

func (c *CLIProgressReporter) OnComplete(stats *ScanStats) {
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Scan complete: %d declarations in %.1fs\n", stats.Declarations, stats.Duration.Seconds())
	fmt.Fprintf(c.out, "  Files:   %d\n", stats.Files)
	fmt.Fprintf(c.out, "  Stored:  %d\n", stats.Stored)
	if stats.Pruned > 0 {
		fmt.Fprintf(c.out, "  Pruned:  %d\n", stats.Pruned)
	}
	if c.verbose {
		fmt.Fprintf(c.out, "  Written: %d\n", stats.Written)
		fmt.Fprintf(c.out, "  Cache:   %d hits, %d misses\n", stats.CacheHits, stats.CacheMisses)
	}
	if len(stats.Failures) > 0 {
		fmt.Fprintf(c.out, "  Skipped: %d\n", len(stats.Failures))
		for _, f := range stats.Failures {
			fmt.Fprintf(c.out, "    %s: %v\n", f.Path, f.Err)
		}
	}
}
