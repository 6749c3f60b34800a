package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/static-reflection/internal/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FactStore:
// - Put then Get with the same stamp returns an equal record
// - Get misses on unknown paths and on changed mtime or size
// - Put replaces an existing record for the same path
// - PutBatch writes every entry in one transaction
// - Lookup finds a record by class name
// - Delete removes records and ignores unknown paths
// - All returns entries ordered by path
// - Parents and Interfaces answer ancestor lookups from stored records
// - StampOf reflects the file on disk

func sampleFacts(fqcn string) *reflection.FactRecord {
	return &reflection.FactRecord{
		FQCN:       fqcn,
		Namespace:  "App",
		ShortName:  reflection.ShortName(fqcn),
		Kind:       reflection.KindClass,
		Abstract:   true,
		Extends:    []string{`App\Base`},
		Implements: []string{"Countable", `App\Contract`},
		Imports:    map[string]string{"Contract": `App\Contract`},
		DocComment: "/**\n * Sample.\n */",
	}
}

func TestFactStore_PutGet(t *testing.T) {
	t.Parallel()

	store := NewFactStore(NewTestDB(t))
	stamp := Stamp{ModTime: time.Unix(1700000000, 123456789), Size: 42}
	facts := sampleFacts(`App\Thing`)

	require.NoError(t, store.Put("/src/Thing.php", stamp, facts))

	got, err := store.Get("/src/Thing.php", stamp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, facts, got)
}

func TestFactStore_GetMisses(t *testing.T) {
	t.Parallel()

	store := NewFactStore(NewTestDB(t))
	stamp := Stamp{ModTime: time.Unix(1700000000, 0), Size: 42}
	require.NoError(t, store.Put("/src/Thing.php", stamp, sampleFacts(`App\Thing`)))

	tests := []struct {
		name  string
		path  string
		stamp Stamp
	}{
		{"unknown path", "/src/Other.php", stamp},
		{"changed mtime", "/src/Thing.php", Stamp{ModTime: stamp.ModTime.Add(time.Nanosecond), Size: 42}},
		{"changed size", "/src/Thing.php", Stamp{ModTime: stamp.ModTime, Size: 43}},
	}

	for _, tt := range tests {
		got, err := store.Get(tt.path, tt.stamp)
		require.NoError(t, err, tt.name)
		assert.Nil(t, got, tt.name)
	}
}

func TestFactStore_PutReplaces(t *testing.T) {
	t.Parallel()

	store := NewFactStore(NewTestDB(t))
	first := Stamp{ModTime: time.Unix(1, 0), Size: 1}
	second := Stamp{ModTime: time.Unix(2, 0), Size: 2}

	require.NoError(t, store.Put("/src/Thing.php", first, sampleFacts(`App\Thing`)))
	updated := sampleFacts(`App\Thing`)
	updated.Abstract = false
	updated.Final = true
	require.NoError(t, store.Put("/src/Thing.php", second, updated))

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.Get("/src/Thing.php", second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Final)
	assert.False(t, got.Abstract)
}

func TestFactStore_PutBatchAndAll(t *testing.T) {
	t.Parallel()

	store := NewFactStore(NewTestDB(t))
	unknown := &reflection.FactRecord{Namespace: "App"}

	require.NoError(t, store.PutBatch([]*Entry{
		{Path: "/src/B.php", Stamp: Stamp{Size: 2}, Facts: sampleFacts(`App\B`)},
		{Path: "/src/A.php", Stamp: Stamp{Size: 1}, Facts: sampleFacts(`App\A`)},
		{Path: "/src/functions.php", Stamp: Stamp{Size: 3}, Facts: unknown},
	}))
	require.NoError(t, store.PutBatch(nil))

	entries, err := store.All()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "/src/A.php", entries[0].Path)
	assert.Equal(t, "/src/B.php", entries[1].Path)
	assert.Equal(t, `App\A`, entries[0].Facts.FQCN)
	assert.Equal(t, int64(1), entries[0].Stamp.Size)
	assert.False(t, entries[0].IndexedAt.IsZero())

	// Nil collections come back empty, not nil.
	assert.Equal(t, reflection.KindUnknown, entries[2].Facts.Kind)
	assert.NotNil(t, entries[2].Facts.Extends)
	assert.NotNil(t, entries[2].Facts.Imports)
}

func TestFactStore_LookupAndDelete(t *testing.T) {
	t.Parallel()

	store := NewFactStore(NewTestDB(t))
	require.NoError(t, store.Put("/src/A.php", Stamp{Size: 1}, sampleFacts(`App\A`)))
	require.NoError(t, store.Put("/src/B.php", Stamp{Size: 1}, sampleFacts(`App\B`)))

	entry, err := store.Lookup(`App\B`)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "/src/B.php", entry.Path)

	missing, err := store.Lookup(`App\Missing`)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Delete("/src/B.php", "/src/never-stored.php"))
	require.NoError(t, store.Delete())

	entry, err = store.Lookup(`App\B`)
	require.NoError(t, err)
	assert.Nil(t, entry)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFactStore_AncestorLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewFactStore(NewTestDB(t))
	require.NoError(t, store.Put("/src/Thing.php", Stamp{}, sampleFacts(`App\Thing`)))

	iface := &reflection.FactRecord{
		FQCN:    `App\Contract`,
		Kind:    reflection.KindInterface,
		Extends: []string{"Countable"},
	}
	require.NoError(t, store.Put("/src/Contract.php", Stamp{}, iface))

	parents, err := store.Parents(ctx, `App\Thing`)
	require.NoError(t, err)
	assert.Equal(t, []string{`App\Base`}, parents)

	interfaces, err := store.Interfaces(ctx, `App\Thing`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Countable", `App\Contract`}, interfaces)

	parents, err = store.Parents(ctx, `App\Contract`)
	require.NoError(t, err)
	assert.Empty(t, parents)

	interfaces, err = store.Interfaces(ctx, `App\Contract`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Countable"}, interfaces)

	_, err = store.Parents(ctx, `App\Missing`)
	assert.ErrorIs(t, err, reflection.ErrUnknownClass)

	// The store plugs into the ancestor cache directly.
	cache := reflection.NewAncestorCache(store)
	set, err := cache.Ancestors(ctx, `App\Thing`)
	require.NoError(t, err)
	assert.True(t, set.HasInterface("Countable"))
	assert.True(t, set.Has(`App\Base`))
}

func TestStampOf(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Thing.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\n"), 0644))

	stamp, err := StampOf(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stamp.Size)
	assert.False(t, stamp.ModTime.IsZero())

	_, err = StampOf(filepath.Join(t.TempDir(), "missing.php"))
	assert.Error(t, err)
}
