// Package discovery finds PHP class files under PSR-4 autoload roots and
// derives the class name each file is expected to declare.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/static-reflection/internal/config"
	"github.com/mvp-joe/static-reflection/internal/reflection"
)

// Candidate is a file expected to declare ExpectedFQCN.
type Candidate struct {
	Path         string `json:"path"`
	ExpectedFQCN string `json:"expected_fqcn"`
}

// compiledPattern holds the pattern string, its compiled glob and, for
// "**/"-prefixed patterns, the glob matching files at the root.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
	atRoot  glob.Glob
}

// autoloadRoot is one namespace prefix bound to one absolute directory.
type autoloadRoot struct {
	prefix string
	dir    string
}

// Discovery maps between class names and files with glob patterns and
// ignore rules applied.
type Discovery struct {
	rootDir         string
	roots           []autoloadRoot
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
}

// NewDiscovery creates a discovery instance for a project root. Autoload
// directories are relative to rootDir; patterns match paths relative to it.
func NewDiscovery(rootDir string, autoload config.AutoloadConfig, includePatterns, ignorePatterns []string) (*Discovery, error) {
	d := &Discovery{
		rootDir: rootDir,
	}

	for _, m := range autoload.PSR4 {
		for _, dir := range m.Dirs {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(rootDir, dir)
			}
			d.roots = append(d.roots, autoloadRoot{prefix: m.Prefix, dir: filepath.Clean(dir)})
		}
	}
	// Longest prefix first so the most specific mapping claims a file.
	sort.SliceStable(d.roots, func(i, j int) bool {
		return len(d.roots[i].prefix) > len(d.roots[j].prefix)
	})

	var err error
	if d.includePatterns, err = compilePatterns(includePatterns); err != nil {
		return nil, err
	}
	if d.ignorePatterns, err = compilePatterns(ignorePatterns); err != nil {
		return nil, err
	}

	return d, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if simplified, ok := strings.CutPrefix(pattern, "**/"); ok {
			if cp.atRoot, err = glob.Compile(simplified, '/'); err != nil {
				return nil, err
			}
		}
		compiled = append(compiled, cp)
	}
	return compiled, nil
}

// RootDir returns the project root.
func (d *Discovery) RootDir() string {
	return d.rootDir
}

// Discover walks every autoload directory and returns the class files found,
// sorted by path. Files whose path cannot form a class name are skipped.
func (d *Discovery) Discover(ctx context.Context) ([]Candidate, error) {
	seen := make(map[string]Candidate)

	for _, root := range d.roots {
		if _, err := os.Stat(root.dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(root.dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			relPath := d.relative(path)
			if entry.IsDir() {
				if path != root.dir && d.shouldIgnore(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			if _, claimed := seen[path]; claimed {
				return nil
			}
			if !d.accepts(relPath) {
				return nil
			}

			fqcn, ok := root.classFor(path)
			if !ok {
				return nil
			}
			seen[path] = Candidate{Path: path, ExpectedFQCN: fqcn}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	candidates := make([]Candidate, 0, len(seen))
	for _, c := range seen {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

// ExpectedFQCN returns the class a file is expected to declare, or false if
// the file is outside every autoload root or excluded by the patterns.
func (d *Discovery) ExpectedFQCN(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.rootDir, path)
	}
	path = filepath.Clean(path)

	if !d.accepts(d.relative(path)) {
		return "", false
	}
	for _, root := range d.roots {
		if fqcn, ok := root.classFor(path); ok {
			return fqcn, true
		}
	}
	return "", false
}

// LocateClass returns the file expected to declare fqcn, if one exists.
func (d *Discovery) LocateClass(fqcn string) (string, bool) {
	fqcn = strings.TrimPrefix(fqcn, reflection.NamespaceSeparator)
	if fqcn == "" {
		return "", false
	}

	for _, root := range d.roots {
		if !strings.HasPrefix(fqcn, root.prefix) {
			continue
		}
		rel := strings.TrimPrefix(fqcn, root.prefix)
		if rel == "" {
			continue
		}
		path := filepath.Join(root.dir, filepath.FromSlash(strings.ReplaceAll(rel, reflection.NamespaceSeparator, "/"))+".php")
		if !d.accepts(d.relative(path)) {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Watches reports whether a watcher should follow path: directories that
// are not ignored, and files that are candidates.
func (d *Discovery) Watches(path string, isDir bool) bool {
	rel := d.relative(filepath.Clean(path))
	if isDir {
		return rel == "." || !d.shouldIgnore(rel)
	}
	return d.accepts(rel)
}

// accepts reports whether a root-relative path is included and not ignored.
func (d *Discovery) accepts(relPath string) bool {
	if d.shouldIgnore(relPath) {
		return false
	}
	return d.matchesAnyPattern(relPath, d.includePatterns)
}

func (d *Discovery) relative(path string) string {
	rel, err := filepath.Rel(d.rootDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// classFor derives the PSR-4 class name of a file under the root.
func (r autoloadRoot) classFor(path string) (string, bool) {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if filepath.Ext(rel) != ".php" {
		return "", false
	}

	segments := strings.Split(strings.TrimSuffix(rel, ".php"), "/")
	for _, segment := range segments {
		if !isIdentifier(segment) {
			return "", false
		}
	}
	return r.prefix + strings.Join(segments, reflection.NamespaceSeparator), true
}

// isIdentifier reports whether s is a valid PHP class or namespace name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || r >= 0x80:
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

// shouldIgnore checks if a path matches any ignore pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	// Always ignore the .reflect directory
	if strings.HasPrefix(relPath, config.DirName+"/") || relPath == config.DirName {
		return true
	}

	if d.matchesAnyPattern(relPath, d.ignorePatterns) {
		return true
	}

	// Also check if this is a directory that would match with /** suffix
	// For example, "vendor" should match pattern "vendor/**"
	return d.matchesAnyPattern(relPath+"/**", d.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (d *Discovery) matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// A file in the root (no slash) also matches "**/"-prefixed patterns,
	// so "**/*.php" covers both "Example.php" and "src/Example.php".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if cp.atRoot != nil && cp.atRoot.Match(path) {
				return true
			}
		}
	}

	return false
}
