package overlay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("overlay not found")

// DecodeError reports a persisted row whose columns cannot be mapped back onto
// an Overlay.
type DecodeError struct {
	ID     int64
	Column string
	Value  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("overlay %d: invalid %s %q", e.ID, e.Column, e.Value)
}

// Video is the media file the overlays are previewed against.
type Video struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Duration  float64   `json:"duration"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	ListOverlays(ctx context.Context) ([]Overlay, error)
	GetOverlay(ctx context.Context, id int64) (*Overlay, error)
	CreateOverlay(ctx context.Context, o *Overlay) error
	UpdateOverlay(ctx context.Context, id int64, p Patch) error
	DeleteOverlay(ctx context.Context, id int64) error
	ReplaceOverlays(ctx context.Context, items []Overlay) error
	CountOverlays(ctx context.Context) (int, error)

	GetVideo(ctx context.Context) (*Video, error)
	SetVideo(ctx context.Context, v *Video) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const overlayColumns = "id, url_imagen, posicion_x, posicion_y, ancho, tiempo_inicio, duracion, fondo, transicion"

const insertOverlaySQL = `
	INSERT INTO overlays (url_imagen, posicion_x, posicion_y, ancho, tiempo_inicio, duracion, fondo, transicion)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) ListOverlays(ctx context.Context) ([]Overlay, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+overlayColumns+`
		FROM overlays ORDER BY tiempo_inicio ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Overlay
	for rows.Next() {
		o, err := scanOverlay(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) GetOverlay(ctx context.Context, id int64) (*Overlay, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+overlayColumns+`
		FROM overlays WHERE id = ?
	`, id)
	o, err := scanOverlay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// scanOverlay decodes one row. Enum columns are checked against the canonical
// sets rather than trusted.
func scanOverlay(row scanner) (*Overlay, error) {
	var o Overlay
	var fondo, transicion string

	err := row.Scan(&o.ID, &o.ImageURL, &o.PositionX, &o.PositionY, &o.Width,
		&o.StartTime, &o.Duration, &fondo, &transicion)
	if err != nil {
		return nil, err
	}

	o.Background = Background(fondo)
	if !o.Background.Valid() {
		return nil, &DecodeError{ID: o.ID, Column: "fondo", Value: fondo}
	}
	o.Transition = Transition(transicion)
	if !o.Transition.Valid() {
		return nil, &DecodeError{ID: o.ID, Column: "transicion", Value: transicion}
	}
	return &o, nil
}

func (r *SQLiteRepository) CreateOverlay(ctx context.Context, o *Overlay) error {
	id, err := insertOverlay(ctx, r.db, o)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func insertOverlay(ctx context.Context, ex execer, o *Overlay) (int64, error) {
	res, err := ex.ExecContext(ctx, insertOverlaySQL,
		o.ImageURL, o.PositionX, o.PositionY, o.Width,
		o.StartTime, o.Duration, string(o.Background), string(o.Transition))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateOverlay writes only the columns set in p.
func (r *SQLiteRepository) UpdateOverlay(ctx context.Context, id int64, p Patch) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if p.ImageURL != nil {
		add("url_imagen", *p.ImageURL)
	}
	if p.PositionX != nil {
		add("posicion_x", *p.PositionX)
	}
	if p.PositionY != nil {
		add("posicion_y", *p.PositionY)
	}
	if p.Width != nil {
		add("ancho", *p.Width)
	}
	if p.StartTime != nil {
		add("tiempo_inicio", *p.StartTime)
	}
	if p.Duration != nil {
		add("duracion", *p.Duration)
	}
	if p.Background != nil {
		add("fondo", string(*p.Background))
	}
	if p.Transition != nil {
		add("transicion", string(*p.Transition))
	}

	if len(sets) == 0 {
		existing, err := r.GetOverlay(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}
		return nil
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE overlays SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteOverlay(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM overlays WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ReplaceOverlays deletes every row and inserts items in order. IDs are
// written back into items.
func (r *SQLiteRepository) ReplaceOverlays(ctx context.Context, items []Overlay) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM overlays"); err != nil {
		return fmt.Errorf("clear overlays: %w", err)
	}

	for i := range items {
		id, err := insertOverlay(ctx, tx, &items[i])
		if err != nil {
			return fmt.Errorf("insert overlay %d: %w", i, err)
		}
		items[i].ID = id
	}

	return tx.Commit()
}

func (r *SQLiteRepository) CountOverlays(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overlays").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT path, name, size, width, height, duration, updated_at
		FROM videos WHERE id = 1
	`)

	var v Video
	var updatedAt string
	err := row.Scan(&v.Path, &v.Name, &v.Size, &v.Width, &v.Height, &v.Duration, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

func (r *SQLiteRepository) SetVideo(ctx context.Context, v *Video) error {
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, path, name, size, width, height, duration, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			name = excluded.name,
			size = excluded.size,
			width = excluded.width,
			height = excluded.height,
			duration = excluded.duration,
			updated_at = excluded.updated_at
	`, v.Path, v.Name, v.Size, v.Width, v.Height, v.Duration, v.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
