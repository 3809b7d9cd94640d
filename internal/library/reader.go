package library

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"time"
)

// queries holds the read side shared by Store and Reader.
type queries struct {
	db *sql.DB
}

// Reader opens a library read-only, for serving.
type Reader struct {
	queries
	path string
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='textures'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain textures table")
	}
	return &Reader{queries: queries{db: db}, path: path}, nil
}

func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

const recordColumns = "id, name, pattern, settings, width, height, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		settings string
		created  int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Pattern, &settings, &rec.Width, &rec.Height, &created); err != nil {
		return Record{}, err
	}
	params := struct {
		Settings *json.RawMessage `json:"settings"`
		Noise    *json.RawMessage `json:"noise"`
	}{}
	if err := json.Unmarshal([]byte(settings), &params); err != nil {
		return Record{}, fmt.Errorf("failed to decode settings of %s: %w", rec.ID, err)
	}
	if params.Settings != nil {
		if err := json.Unmarshal(*params.Settings, &rec.Settings); err != nil {
			return Record{}, fmt.Errorf("failed to decode settings of %s: %w", rec.ID, err)
		}
	}
	if params.Noise != nil {
		if err := json.Unmarshal(*params.Noise, &rec.Noise); err != nil {
			return Record{}, fmt.Errorf("failed to decode noise settings of %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

// Get returns the record for id.
func (q queries) Get(id string) (Record, error) {
	rec, err := scanRecord(q.db.QueryRow("SELECT "+recordColumns+" FROM textures WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to query texture: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (q queries) List(limit int) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM textures ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query textures: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan texture row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating textures: %w", err)
	}
	return out, nil
}

// PNG returns the stored full-size PNG bytes.
func (q queries) PNG(id string) ([]byte, error) {
	var compressed []byte
	err := q.db.QueryRow("SELECT data FROM textures WHERE id = ?", id).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query texture: %w", err)
	}
	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress texture: %w", err)
	}
	return data, nil
}

// Thumbnail returns the stored thumbnail PNG bytes.
func (q queries) Thumbnail(id string) ([]byte, error) {
	var thumb []byte
	err := q.db.QueryRow("SELECT thumb FROM textures WHERE id = ?", id).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query thumbnail: %w", err)
	}
	return thumb, nil
}

// Image decodes the stored texture.
func (q queries) Image(id string) (*image.NRGBA, error) {
	data, err := q.PNG(id)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture: %w", err)
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n, nil
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}

// Metadata reads the library metadata.
func (q queries) Metadata() (Metadata, error) {
	rows, err := q.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		m[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}
	return Metadata{Name: m["name"], Description: m["description"], Version: m["version"]}, nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
