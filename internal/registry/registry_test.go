package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mvp-joe/static-reflection/internal/config"
	"github.com/mvp-joe/static-reflection/internal/discovery"
	"github.com/mvp-joe/static-reflection/internal/reflection"
	"github.com/mvp-joe/static-reflection/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Registry:
// - Get locates a class through PSR-4 and reuses the reflector
// - Get fails with ErrClassNotFound for classes without a file
// - Deep IsSubclassOf queries resolve through project sources
// - Built-in ancestors resolve through the manifest fallback
// - Parsed records are written through to the fact store
// - Batched loads reach the store only on Flush, in one write
// - A second registry over the same store reuses stored records without parsing
// - Invalidate drops reflectors and stored records
// - Load reports consistency errors for mismatched files
// - Inspect caches autoloaded files and accepts any declaration elsewhere

const fixturesNS = `Acme\Reflection\Fixtures`

var testdataRoot = filepath.Join("..", "..", "testdata", "php")

func newTestDiscovery(t *testing.T) *discovery.Discovery {
	t.Helper()
	autoload := config.AutoloadConfig{
		PSR4: []config.PSR4Mapping{{Prefix: fixturesNS + `\`, Dirs: []string{"Fixtures"}}},
	}
	d, err := discovery.NewDiscovery(testdataRoot, autoload, []string{"**/*.php"}, nil)
	require.NoError(t, err)
	return d
}

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	manifest, err := LoadManifests(filepath.Join(testdataRoot, "builtins.yml"))
	require.NoError(t, err)

	opts = append([]Option{WithFallbacks(manifest)}, opts...)
	r, err := New(newTestDiscovery(t), 100, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

type countingLexer struct {
	reflection.Lexer
	mu    sync.Mutex
	calls int
}

func (l *countingLexer) Tokens(ctx context.Context, src []byte) ([]reflection.Token, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.Lexer.Tokens(ctx, src)
}

func (l *countingLexer) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := newTestRegistry(t)

	class, err := r.Get(ctx, `\`+fixturesNS+`\Example`)
	require.NoError(t, err)
	assert.Equal(t, fixturesNS+`\Example`, class.Name())
	assert.Equal(t, filepath.Join(testdataRoot, "Fixtures", "Example.php"), class.FileName())

	again, err := r.Get(ctx, fixturesNS+`\Example`)
	require.NoError(t, err)
	assert.Same(t, class, again)
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(ctx, fixturesNS+`\Nope`)
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestRegistry_DeepAncestry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := newTestRegistry(t)
	class, err := r.Get(ctx, fixturesNS+`\Example`)
	require.NoError(t, err)

	tests := []struct {
		target string
		want   bool
	}{
		{fixturesNS + `\Base\Example`, true},
		{fixturesNS + `\Base\Root`, true},
		{fixturesNS + `\Base\InvisibleInterface`, true},
		{"Countable", true},
		{fixturesNS + `\Base\NotImportedInterface`, false},
	}
	for _, tt := range tests {
		got, err := class.IsSubclassOf(ctx, tt.target)
		require.NoError(t, err, tt.target)
		assert.Equal(t, tt.want, got, tt.target)
	}

	implements, err := class.ImplementsInterface(ctx, fixturesNS+`\Base\InvisibleInterface`)
	require.NoError(t, err)
	assert.True(t, implements)

	root, err := class.ImplementsInterface(ctx, fixturesNS+`\Base\Root`)
	require.NoError(t, err)
	assert.False(t, root)
}

func TestRegistry_ManifestFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := newTestRegistry(t)
	class, err := r.Get(ctx, fixturesNS+`\Collection`)
	require.NoError(t, err)

	traversable, err := class.IsSubclassOf(ctx, "Traversable")
	require.NoError(t, err)
	assert.True(t, traversable)

	iterator, err := class.ImplementsInterface(ctx, "Iterator")
	require.NoError(t, err)
	assert.True(t, iterator)

	aggregate, err := class.IsSubclassOf(ctx, "IteratorAggregate")
	require.NoError(t, err)
	assert.False(t, aggregate)
}

func TestRegistry_StoreWriteThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := storage.NewFactStore(storage.NewTestDB(t))

	first := newTestRegistry(t, WithStore(store))
	facts, err := first.Facts(ctx, fixturesNS+`\Base\Root`)
	require.NoError(t, err)
	assert.Equal(t, reflection.KindClass, facts.Kind)

	path := filepath.Join(testdataRoot, "Fixtures", "Base", "Root.php")
	stamp, err := storage.StampOf(path)
	require.NoError(t, err)
	stored, err := store.Get(path, stamp)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, facts, stored)

	lexer := &countingLexer{Lexer: reflection.NewLexer()}
	second := newTestRegistry(t, WithStore(store), WithLexer(lexer))
	again, err := second.Facts(ctx, fixturesNS+`\Base\Root`)
	require.NoError(t, err)
	assert.Equal(t, facts, again)
	assert.Equal(t, 0, lexer.count())
}

func TestRegistry_LoadBatched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := storage.NewFactStore(storage.NewTestDB(t))
	r := newTestRegistry(t, WithStore(store))

	candidates, err := newTestDiscovery(t).Discover(ctx)
	require.NoError(t, err)

	batch := &Batch{}
	loaded := 0
	for _, c := range candidates {
		if _, err := r.LoadBatched(ctx, c, batch); err == nil {
			loaded++
		}
	}
	require.Equal(t, loaded, batch.Len())

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, r.Flush(batch))
	assert.Equal(t, 0, batch.Len())

	count, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, loaded, count)

	// Already written records are not queued again.
	again := &Batch{}
	for _, c := range candidates {
		_, _ = r.LoadBatched(ctx, c, again)
	}
	assert.Equal(t, 0, again.Len())

	hits, misses := r.Stats()
	assert.Positive(t, hits)
	assert.Positive(t, misses)
}

func TestRegistry_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := storage.NewFactStore(storage.NewTestDB(t))
	r := newTestRegistry(t, WithStore(store))

	_, err := r.Facts(ctx, fixturesNS+`\Base\Root`)
	require.NoError(t, err)
	before := r.Ancestors()

	path := filepath.Join(testdataRoot, "Fixtures", "Base", "Root.php")
	require.NoError(t, r.Invalidate(path))

	assert.Equal(t, 0, r.Len())
	assert.NotSame(t, before, r.Ancestors())

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRegistry_LoadConsistencyError(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t)
	d := newTestDiscovery(t)

	candidates, err := d.Discover(context.Background())
	require.NoError(t, err)

	failures := map[string]error{}
	for _, c := range candidates {
		if _, err := r.Load(context.Background(), c); err != nil {
			failures[c.ExpectedFQCN] = err
		}
	}

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[fixturesNS+`\Mismatch`], reflection.ErrConsistency)
}

func TestRegistry_Inspect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := newTestRegistry(t)

	autoloaded := r.Inspect(filepath.Join(testdataRoot, "Fixtures", "Base", "Root.php"))
	assert.Equal(t, fixturesNS+`\Base\Root`, autoloaded.Name())
	cached, err := r.Get(ctx, fixturesNS+`\Base\Root`)
	require.NoError(t, err)
	assert.Same(t, autoloaded, cached)

	mismatch := r.Inspect(filepath.Join(testdataRoot, "Fixtures", "Mismatch.php"))
	_, err = mismatch.Facts(ctx)
	assert.ErrorIs(t, err, reflection.ErrConsistency)

	loosePath := filepath.Join(t.TempDir(), "loose.php")
	require.NoError(t, writeFile(loosePath, "<?php\n\nfinal class Loose {\n}\n"))
	loose := r.Inspect(loosePath)
	facts, err := loose.Facts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Loose", facts.FQCN)
	assert.True(t, facts.Final)
	assert.Equal(t, 2, r.Len())
}
