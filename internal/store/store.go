// Package store persists chunks and their embedding vectors.
//
// A collection lives in its own directory under the persist root:
//
//	<persist_directory>/<collection_name>/
//	    chunks.db     - chunk content and metadata (SQLite, WAL mode)
//	    vectors.hnsw  - HNSW graph (gob export)
//	    vectors.meta  - ID mappings and dimensions (gob)
//	<persist_directory>/<collection_name>.lock - writer lock file
//
// The lock file sits beside the collection directory so a destructive
// reset never removes a lock another handle holds.
//
// Chunk rows and graph nodes share generated UUIDs, so a similarity search
// resolves graph hits back to full chunks, and metadata filters resolve to
// an ID set before ranking.
package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/embed"
	"github.com/biorag/biorag/internal/errors"
)

const (
	chunksDBFile  = "chunks.db"
	vectorsFile   = "vectors.hnsw"
	lockSuffix    = ".lock"
	defaultHNSWM  = 16
	defaultHNSWEf = 20
)

// Options configures opening a collection.
type Options struct {
	PersistDirectory string
	CollectionName   string

	// Reset deletes and recreates a non-empty collection before first use.
	// Destructive and irreversible; interactive callers must confirm first.
	Reset bool
}

// Collection is a persisted, searchable set of embedded chunks.
type Collection struct {
	mu       sync.RWMutex
	dir      string
	db       *sql.DB
	graph    *hnsw.Graph[uint64]
	embedder embed.Embedder
	lock     *flock.Flock

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int

	closed bool
}

// graphMetadata is the gob-persisted companion to the HNSW export.
type graphMetadata struct {
	IDMap      map[string]uint64
	NextKey    uint64
	Dimensions int
}

// Open opens or creates the named collection under persistDirectory and
// acquires its writer lock. With opts.Reset an existing non-empty
// collection is wiped first.
func Open(opts Options, embedder embed.Embedder) (*Collection, error) {
	if opts.CollectionName == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "collection name must not be empty", nil)
	}

	dir := filepath.Join(opts.PersistDirectory, opts.CollectionName)

	if err := os.MkdirAll(opts.PersistDirectory, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	// The lock file lives beside the collection directory, not inside it,
	// so a reset cannot wipe the lock another handle holds. It must be
	// held before any destructive work.
	lock := flock.New(filepath.Join(opts.PersistDirectory, opts.CollectionName+lockSuffix))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	if !locked {
		return nil, errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("collection %s is locked by another process", opts.CollectionName), nil).
			WithSuggestion("wait for the other ingest or query to finish")
	}

	if opts.Reset {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
			slog.Info("resetting collection", "dir", dir)
			if err := os.RemoveAll(dir); err != nil {
				_ = lock.Unlock()
				return nil, errors.Wrap(errors.ErrCodeInternal, err)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	c := &Collection{
		dir:      dir,
		embedder: embedder,
		lock:     lock,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
	}

	if err := c.openDB(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	c.newGraph()
	if err := c.loadGraph(); err != nil {
		_ = c.db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return c, nil
}

func (c *Collection) openDB() error {
	db, err := sql.Open("sqlite", filepath.Join(c.dir, chunksDBFile))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	// Single connection prevents writer lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN pragmas, set them explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id       TEXT PRIMARY KEY,
		seq      INTEGER NOT NULL,
		content  TEXT NOT NULL,
		metadata TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_seq ON chunks(seq);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	c.db = db
	return nil
}

func (c *Collection) newGraph() {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = defaultHNSWM
	g.EfSearch = defaultHNSWEf
	g.Ml = 0.25
	c.graph = g
}

// loadGraph restores a previously saved graph and its ID mappings. A fresh
// collection has neither file; a half-present or undecodable pair is
// corruption.
func (c *Collection) loadGraph() error {
	vectorPath := filepath.Join(c.dir, vectorsFile)
	metaPath := vectorPath + ".meta"

	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return nil
	}

	metaFile, err := os.Open(metaPath)
	if err != nil {
		return errors.DataError(errors.ErrCodeCorruptIndex, "cannot open index metadata", err).
			WithSuggestion("run 'biorag ingest --clear' to rebuild the index")
	}
	defer func() { _ = metaFile.Close() }()

	var meta graphMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return errors.DataError(errors.ErrCodeCorruptIndex, "cannot decode index metadata", err).
			WithSuggestion("run 'biorag ingest --clear' to rebuild the index")
	}

	graphFile, err := os.Open(vectorPath)
	if err != nil {
		return errors.DataError(errors.ErrCodeCorruptIndex, "cannot open vector index", err).
			WithSuggestion("run 'biorag ingest --clear' to rebuild the index")
	}
	defer func() { _ = graphFile.Close() }()

	// coder/hnsw Import requires an io.ByteReader.
	if err := c.graph.Import(bufio.NewReader(graphFile)); err != nil {
		return errors.DataError(errors.ErrCodeCorruptIndex, "cannot import vector index", err).
			WithSuggestion("run 'biorag ingest --clear' to rebuild the index")
	}

	c.idMap = meta.IDMap
	c.nextKey = meta.NextKey
	c.dims = meta.Dimensions
	c.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		c.keyMap[key] = id
	}

	return nil
}

// Insert embeds the chunks and stores content, metadata, and vectors,
// assigning a fresh UUID per chunk. Safe to call repeatedly on the same
// collection; documents accumulate unless the collection was reset.
func (c *Collection) Insert(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New(errors.ErrCodeInternal, "collection is closed", nil)
	}

	for _, v := range vectors {
		if c.dims == 0 {
			c.dims = len(v)
		} else if len(v) != c.dims {
			return errors.ValidationError(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector dimension %d does not match collection dimension %d", len(v), c.dims), nil).
				WithSuggestion("the embedding model changed; run 'biorag ingest --clear' to rebuild")
		}
	}

	var seq int64
	if err := c.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM chunks").Scan(&seq); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	for i, ch := range chunks {
		metaJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrap(errors.ErrCodeInternal, err)
		}

		id := uuid.NewString()
		seq++
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, seq, content, metadata) VALUES (?, ?, ?, ?)",
			id, seq, ch.Content, string(metaJSON)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(errors.ErrCodeInternal, err)
		}

		key := c.nextKey
		c.nextKey++
		c.graph.Add(hnsw.MakeNode(key, vectors[i]))
		c.idMap[id] = key
		c.keyMap[key] = id
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	return c.saveGraph()
}

// saveGraph persists the graph and its ID mappings with temp-file renames,
// so a crash mid-save never leaves a truncated index. Caller holds the lock.
func (c *Collection) saveGraph() error {
	vectorPath := filepath.Join(c.dir, vectorsFile)

	tmpPath := vectorPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := c.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := os.Rename(tmpPath, vectorPath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	metaPath := vectorPath + ".meta"
	tmpMeta := metaPath + ".tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	meta := graphMetadata{IDMap: c.idMap, NextKey: c.nextKey, Dimensions: c.dims}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		_ = metaFile.Close()
		_ = os.Remove(tmpMeta)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := metaFile.Close(); err != nil {
		_ = os.Remove(tmpMeta)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		_ = os.Remove(tmpMeta)
		return errors.Wrap(errors.ErrCodeInternal, err)
	}

	return nil
}

// Search embeds the query and returns up to k chunks ranked nearest first.
// A non-nil filter restricts results to chunks whose metadata matches every
// key/value pair exactly; no matches yields an empty slice, never an error.
func (c *Collection) Search(ctx context.Context, query string, k int, filter map[string]string) ([]chunk.Chunk, error) {
	if k <= 0 {
		return []chunk.Chunk{}, nil
	}

	qvec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.New(errors.ErrCodeInternal, "collection is closed", nil)
	}
	if c.graph.Len() == 0 {
		return []chunk.Chunk{}, nil
	}

	var allowed map[string]bool
	if len(filter) > 0 {
		allowed, err = c.filterIDs(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			return []chunk.Chunk{}, nil
		}
	}

	// With a filter the graph is ranked exhaustively; post-filtering an
	// approximate top-k could silently drop matching chunks.
	searchK := k
	if allowed != nil {
		searchK = c.graph.Len()
	}

	var ids []string
	for _, node := range c.graph.Search(qvec, searchK) {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		if allowed != nil && !allowed[id] {
			continue
		}
		ids = append(ids, id)
		if len(ids) == k {
			break
		}
	}

	return c.fetchChunks(ctx, ids)
}

// filterIDs returns the set of chunk IDs whose metadata matches every
// key/value pair in filter.
func (c *Collection) filterIDs(ctx context.Context, filter map[string]string) (map[string]bool, error) {
	var conds []string
	var args []any
	for key, value := range filter {
		// Quoted JSON path so keys with spaces ("Main Title") resolve.
		conds = append(conds, `json_extract(metadata, '$."' || ? || '"') = ?`)
		args = append(args, key, value)
	}

	query := "SELECT id FROM chunks WHERE " + strings.Join(conds, " AND ")
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}
	defer func() { _ = rows.Close() }()

	allowed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
		}
		allowed[id] = true
	}
	return allowed, rows.Err()
}

// fetchChunks loads chunk rows by ID, preserving the given ranking order.
func (c *Collection) fetchChunks(ctx context.Context, ids []string) ([]chunk.Chunk, error) {
	results := make([]chunk.Chunk, 0, len(ids))
	for _, id := range ids {
		var content, metaJSON string
		err := c.db.QueryRowContext(ctx,
			"SELECT content, metadata FROM chunks WHERE id = ?", id).Scan(&content, &metaJSON)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err)
		}
		results = append(results, chunk.Chunk{Content: content, Metadata: meta})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (c *Collection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errors.New(errors.ErrCodeInternal, "collection is closed", nil)
	}

	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err)
	}
	return n, nil
}

// Path returns the collection's on-disk directory.
func (c *Collection) Path() string {
	return c.dir
}

// Close releases the database, the writer lock, and the in-memory graph.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	err := c.db.Close()
	if unlockErr := c.lock.Unlock(); err == nil {
		err = unlockErr
	}
	c.graph = nil
	return err
}
