// Package sqlite provides a vectorstore.Collection persisted in SQLite.
// Vectors are stored as little-endian float32 blobs and ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/vectorstore"
)

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Open opens (creating if necessary) the database file at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Collection is a SQLite-backed vectorstore.Collection. Several collections
// can share one database; each owns a row range keyed by its name.
type Collection struct {
	db   *sql.DB
	name string
}

// New creates the collection, migrating the schema if needed.
func New(db *sql.DB, name string) (*Collection, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	c := &Collection{db: db, name: name}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

func (c *Collection) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vector_records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		vector BLOB NOT NULL,
		dims INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_vector_records_seq ON vector_records(collection, seq);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Name implements vectorstore.Collection.
func (c *Collection) Name() string { return c.name }

// Add inserts or replaces records in one transaction.
func (c *Collection) Add(ctx context.Context, records ...vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dims sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT dims FROM vector_records WHERE collection = ? LIMIT 1`, c.name).Scan(&dims); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read dimensions: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM vector_records WHERE collection = ?`, c.name).Scan(&seq); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range records {
		if r.ID == "" {
			r.ID = core.NewID()
		}
		if dims.Valid && int(dims.Int64) != len(r.Vector) {
			return fmt.Errorf("%s: record %s has %d dimensions, want %d: %w", c.name, r.ID, len(r.Vector), dims.Int64, vectorstore.ErrDimensionMismatch)
		}
		dims = sql.NullInt64{Int64: int64(len(r.Vector)), Valid: true}

		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		seq++
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vector_records (collection, id, seq, content, metadata, vector, dims, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				content = excluded.content,
				metadata = excluded.metadata,
				vector = excluded.vector,
				dims = excluded.dims`,
			c.name, r.ID, seq, r.Content, string(md), encodeVector(r.Vector), len(r.Vector), now)
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Query implements vectorstore.Collection.
func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]core.SearchResult, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	mem := vectorstore.NewInMemory(c.name)
	if err := mem.Add(ctx, records...); err != nil {
		return nil, err
	}
	return mem.Query(ctx, vector, k)
}

// List returns all records in insertion order.
func (c *Collection) List(ctx context.Context) ([]vectorstore.Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, content, metadata, vector FROM vector_records
		WHERE collection = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.Record
	for rows.Next() {
		var (
			r    vectorstore.Record
			md   sql.NullString
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &md, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if md.Valid && md.String != "" && md.String != "null" {
			if err := json.Unmarshal([]byte(md.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
			}
		}
		r.Vector = decodeVector(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count implements vectorstore.Collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records WHERE collection = ?`, c.name).Scan(&n)
	return n, err
}

// Delete removes records by id.
func (c *Collection) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, c.name)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `DELETE FROM vector_records WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	_, err := c.db.ExecContext(ctx, q, args...)
	return err
}

// Clear removes every record of the collection.
func (c *Collection) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM vector_records WHERE collection = ?`, c.name)
	return err
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
