package library

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/MeKo-Tech/textilegen/internal/studio"
	"github.com/nfnt/resize"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of textures buffered before a flush.
	DefaultBatchSize = 16
	// ThumbnailSize bounds the longer thumbnail side in pixels.
	ThumbnailSize = 128
)

type pending struct {
	rec    Record
	img    *image.NRGBA
	params []byte
}

// Store writes textures in batches and reads them back. Reads only see
// flushed textures.
type Store struct {
	queries
	path      string
	batch     []pending
	batchSize int
	mu        sync.Mutex
}

// Open creates or opens a library database and writes its metadata.
func Open(path string, meta Metadata) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := insertMetadata(db, meta); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Store{
		queries:   queries{db: db},
		path:      path,
		batch:     make([]pending, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS textures (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			pattern TEXT NOT NULL,
			settings TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL,
			thumb BLOB
		);

		CREATE INDEX IF NOT EXISTS textures_created ON textures (created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	stmt, err := db.Prepare("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}
	return nil
}

// storedParams is the JSON kept in the settings column.
type storedParams struct {
	Settings any `json:"settings"`
	Noise    any `json:"noise"`
}

// Add queues a texture; the batch is flushed when full.
func (s *Store) Add(tex *studio.Texture) error {
	if tex == nil || tex.Data == nil {
		return fmt.Errorf("texture has no data")
	}
	params, err := json.Marshal(storedParams{Settings: tex.Settings, Noise: tex.Noise})
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	b := tex.Data.Bounds()
	rec := Record{
		ID:        tex.ID,
		Name:      tex.Name,
		Pattern:   tex.Pattern,
		Settings:  tex.Settings,
		Noise:     tex.Noise,
		Width:     b.Dx(),
		Height:    b.Dy(),
		CreatedAt: tex.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, pending{rec: rec, img: tex.Data, params: params})
	if len(s.batch) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

// Flush writes buffered textures to the database.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if len(s.batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO textures
		(id, name, pattern, settings, width, height, created_at, data, thumb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range s.batch {
		data, err := encodePNG(p.img)
		if err != nil {
			return fmt.Errorf("failed to encode texture %s: %w", p.rec.ID, err)
		}
		compressed, err := gzipCompress(data)
		if err != nil {
			return fmt.Errorf("failed to compress texture %s: %w", p.rec.ID, err)
		}
		thumb, err := encodePNG(resize.Thumbnail(ThumbnailSize, ThumbnailSize, p.img, resize.Lanczos3))
		if err != nil {
			return fmt.Errorf("failed to encode thumbnail %s: %w", p.rec.ID, err)
		}

		r := p.rec
		if _, err := stmt.Exec(r.ID, r.Name, r.Pattern, string(p.params), r.Width, r.Height,
			r.CreatedAt.UnixMilli(), compressed, thumb); err != nil {
			return fmt.Errorf("failed to insert texture %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	clear(s.batch)
	s.batch = s.batch[:0]
	return nil
}

// Delete removes a stored texture, flushing pending writes first.
func (s *Store) Delete(id string) error {
	if err := s.Flush(); err != nil {
		return err
	}
	res, err := s.db.Exec("DELETE FROM textures WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete texture: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close flushes pending textures and closes the database.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
