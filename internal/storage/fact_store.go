package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mvp-joe/static-reflection/internal/reflection"
)

// Stamp identifies one version of a file. A stored record is only served
// while the file's stamp is unchanged.
type Stamp struct {
	ModTime time.Time
	Size    int64
}

// StampOf stats path.
func StampOf(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, err
	}
	return Stamp{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Entry is a stored fact record with its file and stamp.
type Entry struct {
	Path      string
	Stamp     Stamp
	Facts     *reflection.FactRecord
	IndexedAt time.Time
}

// FactStore persists parsed fact records keyed by file path.
type FactStore struct {
	db *sql.DB
}

// NewFactStore creates a FactStore.
// DB must have schema already created via CreateSchema().
func NewFactStore(db *sql.DB) *FactStore {
	return &FactStore{db: db}
}

var factColumns = []string{
	"file_path", "fqcn", "namespace", "short_name", "kind", "abstract", "final",
	"extends", "implements", "imports", "doc_comment",
	"mtime_ns", "size_bytes", "indexed_at",
}

// Put writes or replaces the record for path.
// Uses INSERT OR REPLACE to handle updates.
func (s *FactStore) Put(path string, stamp Stamp, facts *reflection.FactRecord) error {
	values, err := factValues(path, stamp, facts)
	if err != nil {
		return err
	}

	_, err = sq.Insert("facts").
		Columns(factColumns...).
		Values(values...).
		Options("OR REPLACE").
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to write facts for %s: %w", path, err)
	}
	return nil
}

// PutBatch writes multiple entries in a single transaction.
func (s *FactStore) PutBatch(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Build the query once with Squirrel, then get SQL for preparation
	placeholders := make([]any, len(factColumns))
	sqlStr, _, err := sq.Insert("facts").
		Columns(factColumns...).
		Values(placeholders...).
		Options("OR REPLACE").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		values, err := factValues(e.Path, e.Stamp, e.Facts)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("failed to write facts for %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func factValues(path string, stamp Stamp, f *reflection.FactRecord) ([]any, error) {
	extends, err := json.Marshal(nonNilStrings(f.Extends))
	if err != nil {
		return nil, fmt.Errorf("failed to encode extends for %s: %w", path, err)
	}
	implements, err := json.Marshal(nonNilStrings(f.Implements))
	if err != nil {
		return nil, fmt.Errorf("failed to encode implements for %s: %w", path, err)
	}
	imports := f.Imports
	if imports == nil {
		imports = map[string]string{}
	}
	importsJSON, err := json.Marshal(imports)
	if err != nil {
		return nil, fmt.Errorf("failed to encode imports for %s: %w", path, err)
	}

	return []any{
		path,
		f.FQCN,
		f.Namespace,
		f.ShortName,
		f.Kind.String(),
		f.Abstract,
		f.Final,
		string(extends),
		string(implements),
		string(importsJSON),
		f.DocComment,
		stamp.ModTime.UnixNano(),
		stamp.Size,
		time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Get returns the record stored for path if it was stored with stamp.
// Returns (nil, nil) on a miss or a stale stamp.
func (s *FactStore) Get(path string, stamp Stamp) (*reflection.FactRecord, error) {
	entry, err := s.queryOne(sq.Eq{"file_path": path})
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.Stamp.Size != stamp.Size || entry.Stamp.ModTime.UnixNano() != stamp.ModTime.UnixNano() {
		return nil, nil
	}
	return entry.Facts, nil
}

// Lookup returns the entry declaring fqcn. Returns (nil, nil) if none does.
func (s *FactStore) Lookup(fqcn string) (*Entry, error) {
	return s.queryOne(sq.Eq{"fqcn": fqcn})
}

func (s *FactStore) queryOne(where sq.Eq) (*Entry, error) {
	rows, err := sq.Select(factColumns...).
		From("facts").
		Where(where).
		OrderBy("file_path").
		Limit(1).
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// All returns every stored entry ordered by path.
func (s *FactStore) All() ([]*Entry, error) {
	rows, err := sq.Select(factColumns...).
		From("facts").
		OrderBy("file_path").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query all facts: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the number of stored records.
func (s *FactStore) Count() (int, error) {
	var count int
	err := sq.Select("COUNT(*)").
		From("facts").
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return count, nil
}

// Delete removes the records for paths. Unknown paths are ignored.
func (s *FactStore) Delete(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := sq.Delete("facts").
		Where(sq.Eq{"file_path": paths}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to delete facts: %w", err)
	}
	return nil
}

// Parents implements reflection.AncestorLookup from stored records.
func (s *FactStore) Parents(ctx context.Context, name string) ([]string, error) {
	facts, err := s.lookupFacts(ctx, name)
	if err != nil {
		return nil, err
	}
	return facts.DirectParents(), nil
}

// Interfaces implements reflection.AncestorLookup from stored records.
func (s *FactStore) Interfaces(ctx context.Context, name string) ([]string, error) {
	facts, err := s.lookupFacts(ctx, name)
	if err != nil {
		return nil, err
	}
	return facts.DirectInterfaces(), nil
}

func (s *FactStore) lookupFacts(ctx context.Context, name string) (*reflection.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, reflection.ErrUnknownClass
	}
	return entry.Facts, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var (
			e                            Entry
			kind                         string
			extends, implements, imports string
			mtimeNs                      int64
			indexedAt                    string
		)
		f := &reflection.FactRecord{}
		if err := rows.Scan(
			&e.Path,
			&f.FQCN,
			&f.Namespace,
			&f.ShortName,
			&kind,
			&f.Abstract,
			&f.Final,
			&extends,
			&implements,
			&imports,
			&f.DocComment,
			&mtimeNs,
			&e.Stamp.Size,
			&indexedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan facts: %w", err)
		}

		if err := f.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, fmt.Errorf("invalid facts for %s: %w", e.Path, err)
		}
		if err := json.Unmarshal([]byte(extends), &f.Extends); err != nil {
			return nil, fmt.Errorf("invalid extends for %s: %w", e.Path, err)
		}
		if err := json.Unmarshal([]byte(implements), &f.Implements); err != nil {
			return nil, fmt.Errorf("invalid implements for %s: %w", e.Path, err)
		}
		if err := json.Unmarshal([]byte(imports), &f.Imports); err != nil {
			return nil, fmt.Errorf("invalid imports for %s: %w", e.Path, err)
		}

		e.Stamp.ModTime = time.Unix(0, mtimeNs)
		e.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
		e.Facts = f
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}
	return entries, nil
}
