// Package registry hands out shared reflectors for the classes of a project
// and wires them to the ancestor lookups that answer deep ancestry queries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/maypok86/otter"
	"github.com/mvp-joe/static-reflection/internal/discovery"
	"github.com/mvp-joe/static-reflection/internal/reflection"
	"github.com/mvp-joe/static-reflection/internal/storage"
)

// ErrClassNotFound indicates no autoload file exists for a class.
var ErrClassNotFound = errors.New("class not found")

// entry is a cached reflector and the file version it was created for.
type entry struct {
	class     *reflection.Class
	path      string
	stamp     storage.Stamp
	fromStore bool
	persisted atomic.Bool
}

// Registry maps class names to reflectors. Reflectors share one lexer and
// one ancestor cache. Parsed records are written through to the fact store
// when one is configured.
type Registry struct {
	discovery *discovery.Discovery
	lexer     reflection.Lexer
	store     *storage.FactStore
	fallbacks []reflection.AncestorLookup
	verbose   bool

	classes otter.Cache[string, *entry]

	mu        sync.RWMutex
	ancestors *reflection.AncestorCache
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore enables the fact store for reads and write-through.
func WithStore(store *storage.FactStore) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// WithFallbacks adds lookups consulted for ancestors that have no autoload
// file, in order.
func WithFallbacks(lookups ...reflection.AncestorLookup) Option {
	return func(r *Registry) {
		r.fallbacks = append(r.fallbacks, lookups...)
	}
}

// WithLexer overrides the lexer shared by all reflectors.
func WithLexer(lexer reflection.Lexer) Option {
	return func(r *Registry) {
		r.lexer = lexer
	}
}

// WithVerbose logs store hits and write-through failures.
func WithVerbose(verbose bool) Option {
	return func(r *Registry) {
		r.verbose = verbose
	}
}

// New creates a registry holding at most capacity reflectors.
func New(disc *discovery.Discovery, capacity int, opts ...Option) (*Registry, error) {
	r := &Registry{
		discovery: disc,
		lexer:     reflection.NewLexer(),
	}
	for _, opt := range opts {
		opt(r)
	}

	classes, err := otter.MustBuilder[string, *entry](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build class cache: %w", err)
	}
	r.classes = classes
	r.ancestors = reflection.NewAncestorCache(r.lookup())

	return r, nil
}

// lookup is the oracle chain: project sources first, then fallbacks.
func (r *Registry) lookup() reflection.AncestorLookup {
	lookups := append([]reflection.AncestorLookup{&StaticLookup{registry: r}}, r.fallbacks...)
	return NewChainLookup(lookups...)
}

// Ancestors returns the ancestor cache currently shared by reflectors.
func (r *Registry) Ancestors() *reflection.AncestorCache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ancestors
}

// Get returns the reflector for fqcn, locating its file through PSR-4
// autoload rules. Returns ErrClassNotFound if no file is expected to
// declare it.
func (r *Registry) Get(ctx context.Context, fqcn string) (*reflection.Class, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fqcn = trimName(fqcn)
	if e, ok := r.classes.Get(fqcn); ok {
		return e.class, nil
	}

	path, ok := r.discovery.LocateClass(fqcn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, fqcn)
	}
	return r.Reflect(fqcn, path), nil
}

// Reflect returns the reflector for fqcn declared in path, creating and
// caching it if needed. A stored record for the same file version is reused
// instead of parsing.
func (r *Registry) Reflect(fqcn, path string) *reflection.Class {
	fqcn = trimName(fqcn)
	if e, ok := r.classes.Get(fqcn); ok && e.path == path {
		return e.class
	}

	e := &entry{path: path}
	opts := []reflection.Option{
		reflection.WithLexer(r.lexer),
		reflection.WithAncestorCache(r.Ancestors()),
	}

	if r.store != nil {
		if stamp, err := storage.StampOf(path); err == nil {
			e.stamp = stamp
			facts, err := r.store.Get(path, stamp)
			if err != nil && r.verbose {
				log.Printf("fact store read failed for %s: %v", path, err)
			}
			if facts != nil {
				e.fromStore = true
				opts = append(opts, reflection.WithFacts(facts))
			}
		}
	}

	e.class = reflection.NewClass(fqcn, path, opts...)
	r.classes.Set(fqcn, e)
	return e.class
}

// Inspect returns a reflector for the file at path. Files under an autoload
// root are checked against the class they are expected to declare and
// cached like Get; any other file gets an uncached reflector that accepts
// whatever it declares.
func (r *Registry) Inspect(path string) *reflection.Class {
	if fqcn, ok := r.discovery.ExpectedFQCN(path); ok {
		return r.Reflect(fqcn, path)
	}
	return reflection.NewClass("", path,
		reflection.WithLexer(r.lexer),
		reflection.WithAncestorCache(r.Ancestors()),
	)
}

// Facts returns the parsed record of fqcn, writing it through to the store
// on first parse.
func (r *Registry) Facts(ctx context.Context, fqcn string) (*reflection.FactRecord, error) {
	class, err := r.Get(ctx, fqcn)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, class)
}

// Load parses the candidate's file, or reuses its stored record, and
// writes fresh records through to the store.
func (r *Registry) Load(ctx context.Context, c discovery.Candidate) (*reflection.FactRecord, error) {
	return r.load(ctx, r.Reflect(c.ExpectedFQCN, c.Path))
}

func (r *Registry) load(ctx context.Context, class *reflection.Class) (*reflection.FactRecord, error) {
	facts, err := class.Facts(ctx)
	if err != nil {
		return nil, err
	}

	if e, ok := r.claim(class); ok {
		if err := r.store.Put(e.path, e.stamp, facts); err != nil {
			e.persisted.Store(false)
			if r.verbose {
				log.Printf("fact store write failed for %s: %v", e.path, err)
			}
		}
	}
	return facts, nil
}

// claim returns the cache entry of class when its record still has to be
// written, marking it as written.
func (r *Registry) claim(class *reflection.Class) (*entry, bool) {
	if r.store == nil {
		return nil, false
	}
	e, ok := r.classes.Get(class.Name())
	if !ok || e.class != class || e.fromStore {
		return nil, false
	}
	if !e.persisted.CompareAndSwap(false, true) {
		return nil, false
	}
	return e, true
}

// Batch collects freshly parsed records so they can be written in one
// transaction. It is safe for concurrent use.
type Batch struct {
	mu      sync.Mutex
	entries []*entry
	records []*storage.Entry
}

// Len returns the number of records waiting to be written.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// LoadBatched is Load with the store write deferred to Flush.
func (r *Registry) LoadBatched(ctx context.Context, c discovery.Candidate, b *Batch) (*reflection.FactRecord, error) {
	class := r.Reflect(c.ExpectedFQCN, c.Path)
	facts, err := class.Facts(ctx)
	if err != nil {
		return nil, err
	}

	if e, ok := r.claim(class); ok {
		b.mu.Lock()
		b.entries = append(b.entries, e)
		b.records = append(b.records, &storage.Entry{Path: e.path, Stamp: e.stamp, Facts: facts})
		b.mu.Unlock()
	}
	return facts, nil
}

// Flush writes the batch to the fact store in a single transaction. On
// failure the records are left unwritten so a later load retries them.
func (r *Registry) Flush(b *Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.store == nil || len(b.records) == 0 {
		return nil
	}
	if err := r.store.PutBatch(b.records); err != nil {
		for _, e := range b.entries {
			e.persisted.Store(false)
		}
		return fmt.Errorf("failed to write scanned facts: %w", err)
	}
	b.entries, b.records = nil, nil
	return nil
}

// Invalidate drops stored records for the changed paths. A change to one
// file can alter the ancestry of any class, so every reflector and the
// ancestor cache are discarded as well.
func (r *Registry) Invalidate(paths ...string) error {
	r.classes.Clear()

	r.mu.Lock()
	r.ancestors = reflection.NewAncestorCache(r.lookup())
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.Delete(paths...); err != nil {
		return fmt.Errorf("failed to invalidate stored facts: %w", err)
	}
	return nil
}

// Len returns the number of cached reflectors.
func (r *Registry) Len() int {
	return r.classes.Size()
}

// Stats reports reflector cache hits and misses.
func (r *Registry) Stats() (hits, misses int64) {
	stats := r.classes.Stats()
	return stats.Hits(), stats.Misses()
}

// Close releases the reflector cache.
func (r *Registry) Close() {
	r.classes.Close()
}

func trimName(name string) string {
	if len(name) > 0 && name[0] == '\\' {
		return name[1:]
	}
	return name
}
