// Package scenestore is a SQLite-backed implementation of scene.Mutator.
// It is the document store in local mode and the fixture store in tests:
// shapes, selection, and viewport live in one database, every mutation is
// one transaction, and Snapshot reads a consistent document.
package scenestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atelierink/sketchd/dbopen"
	"github.com/atelierink/sketchd/idgen"
	"github.com/atelierink/sketchd/layers"
	"github.com/atelierink/sketchd/scene"
)

// Schema creates the scene tables.
const Schema = `
CREATE TABLE IF NOT EXISTS shapes (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	x            REAL NOT NULL DEFAULT 0,
	y            REAL NOT NULL DEFAULT 0,
	width        REAL NOT NULL DEFAULT 0,
	height       REAL NOT NULL DEFAULT 0,
	radius       REAL NOT NULL DEFAULT 0,
	x2           REAL NOT NULL DEFAULT 0,
	y2           REAL NOT NULL DEFAULT 0,
	text         TEXT NOT NULL DEFAULT '',
	font_size    REAL NOT NULL DEFAULT 0,
	color        TEXT NOT NULL DEFAULT '#000000',
	stroke_color TEXT NOT NULL DEFAULT '',
	stroke_width REAL NOT NULL DEFAULT 0,
	opacity      REAL NOT NULL DEFAULT 1,
	rotation     REAL NOT NULL DEFAULT 0,
	z_index      INTEGER NOT NULL DEFAULT 0,
	visible      INTEGER NOT NULL DEFAULT 1,
	locked       INTEGER NOT NULL DEFAULT 0,
	seq          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shapes_seq ON shapes(seq);

CREATE TABLE IF NOT EXISTS selection (
	shape_id TEXT PRIMARY KEY REFERENCES shapes(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS viewport (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	pan_x REAL NOT NULL DEFAULT 0,
	pan_y REAL NOT NULL DEFAULT 0,
	scale REAL NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS canvas (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	width  REAL NOT NULL,
	height REAL NOT NULL
);
`

// ErrNotFound is returned for operations on an unknown shape id.
var ErrNotFound = errors.New("shape not found")

// Options configure a Store.
type Options struct {
	// NewID mints shape ids. Defaults to prefixed UUIDv7.
	NewID idgen.Generator
	// Bounds is the canvas size, written once on EnsureSchema.
	Bounds scene.Bounds
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("shp_", idgen.Default)
	}
	if o.Bounds == (scene.Bounds{}) {
		o.Bounds = scene.Bounds{Width: 1920, Height: 1080}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Store persists the scene in SQLite and implements scene.Mutator.
type Store struct {
	db     *sql.DB
	newID  idgen.Generator
	bounds scene.Bounds
	logger *slog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, opts Options) *Store {
	opts.defaults()
	return &Store{db: db, newID: opts.NewID, bounds: opts.Bounds, logger: opts.Logger}
}

// EnsureSchema creates the tables and seeds the singleton viewport and
// canvas rows. Call once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create scene schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO viewport (id, pan_x, pan_y, scale) VALUES (1, 0, 0, 1)`)
	if err != nil {
		return fmt.Errorf("seed viewport: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO canvas (id, width, height) VALUES (1, ?, ?)`,
		s.bounds.Width, s.bounds.Height)
	if err != nil {
		return fmt.Errorf("seed canvas: %w", err)
	}
	return nil
}

// insert writes one shape row inside a transaction, assigning the next
// sequence number and a fresh id.
func (s *Store) insert(ctx context.Context, sh scene.Shape) (string, error) {
	id := s.newID()
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM shapes`).Scan(&seq); err != nil {
			return err
		}
		var maxZ int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(z_index), 0) FROM shapes`).Scan(&maxZ); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shapes (
				id, kind, name, x, y, width, height, radius, x2, y2,
				text, font_size, color, stroke_color, stroke_width,
				opacity, rotation, z_index, visible, locked, seq
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, string(sh.Kind), sh.Name, sh.X, sh.Y, sh.Width, sh.Height,
			sh.Radius, sh.X2, sh.Y2, sh.Text, sh.FontSize,
			defaultColor(sh.Color), sh.StrokeColor, sh.StrokeWidth,
			1.0, 0.0, maxZ+1, 1, 0, seq)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert shape: %w", err)
	}
	return id, nil
}

func defaultColor(c string) string {
	if c == "" {
		return "#000000"
	}
	return c
}

// CreateRectangle implements scene.Mutator.
func (s *Store) CreateRectangle(ctx context.Context, p scene.RectParams) (string, error) {
	return s.insert(ctx, scene.Shape{
		Kind: scene.KindRectangle, X: p.X, Y: p.Y, Width: p.Width, Height: p.Height,
		Color: p.Color, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth,
	})
}

// CreateCircle implements scene.Mutator.
func (s *Store) CreateCircle(ctx context.Context, p scene.CircleParams) (string, error) {
	return s.insert(ctx, scene.Shape{
		Kind: scene.KindCircle, X: p.X, Y: p.Y, Radius: p.Radius,
		Color: p.Color, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth,
	})
}

// CreateTriangle implements scene.Mutator.
func (s *Store) CreateTriangle(ctx context.Context, p scene.RectParams) (string, error) {
	return s.insert(ctx, scene.Shape{
		Kind: scene.KindTriangle, X: p.X, Y: p.Y, Width: p.Width, Height: p.Height,
		Color: p.Color, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth,
	})
}

// CreateLine implements scene.Mutator.
func (s *Store) CreateLine(ctx context.Context, p scene.LineParams) (string, error) {
	return s.insert(ctx, scene.Shape{
		Kind: scene.KindLine, X: p.X1, Y: p.Y1, X2: p.X2, Y2: p.Y2,
		Color: p.Color, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth,
	})
}

// CreateText implements scene.Mutator.
func (s *Store) CreateText(ctx context.Context, p scene.TextParams) (string, error) {
	fontSize := p.FontSize
	if fontSize == 0 {
		fontSize = 16
	}
	return s.insert(ctx, scene.Shape{
		Kind: scene.KindText, X: p.X, Y: p.Y, Text: p.Text, FontSize: fontSize,
		Color: p.Color, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth,
	})
}

// UpdateShape implements scene.Mutator. Nil patch fields are untouched.
func (s *Store) UpdateShape(ctx context.Context, id string, patch scene.Patch) error {
	if patch.IsZero() {
		return nil
	}
	set, args := patchSQL(patch)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE shapes SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update shape %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update shape %s: %w", id, ErrNotFound)
	}
	return nil
}

func patchSQL(p scene.Patch) (string, []any) {
	var set string
	var args []any
	add := func(col string, v any) {
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.X != nil {
		add("x", *p.X)
	}
	if p.Y != nil {
		add("y", *p.Y)
	}
	if p.Width != nil {
		add("width", *p.Width)
	}
	if p.Height != nil {
		add("height", *p.Height)
	}
	if p.Radius != nil {
		add("radius", *p.Radius)
	}
	if p.X2 != nil {
		add("x2", *p.X2)
	}
	if p.Y2 != nil {
		add("y2", *p.Y2)
	}
	if p.Text != nil {
		add("text", *p.Text)
	}
	if p.FontSize != nil {
		add("font_size", *p.FontSize)
	}
	if p.Color != nil {
		add("color", *p.Color)
	}
	if p.StrokeColor != nil {
		add("stroke_color", *p.StrokeColor)
	}
	if p.StrokeWidth != nil {
		add("stroke_width", *p.StrokeWidth)
	}
	if p.Opacity != nil {
		add("opacity", *p.Opacity)
	}
	if p.Rotation != nil {
		add("rotation", *p.Rotation)
	}
	if p.Visible != nil {
		add("visible", boolInt(*p.Visible))
	}
	if p.Locked != nil {
		add("locked", boolInt(*p.Locked))
	}
	return set, args
}

// DeleteShape implements scene.Mutator.
func (s *Store) DeleteShape(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shapes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shape %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete shape %s: %w", id, ErrNotFound)
	}
	return nil
}

// BulkDelete implements scene.Mutator. Unknown ids are skipped; the call
// is one transaction.
func (s *Store) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM shapes WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bulk delete: %w", err)
	}
	return nil
}

// BringToFront implements scene.Mutator.
func (s *Store) BringToFront(ctx context.Context, id string) error {
	return s.relayer(ctx, id, func(shapes []scene.Shape) ([]layers.Change, error) {
		return layers.PromoteToFront(shapes, id)
	})
}

// SendToBack implements scene.Mutator.
func (s *Store) SendToBack(ctx context.Context, id string) error {
	return s.relayer(ctx, id, func(shapes []scene.Shape) ([]layers.Change, error) {
		return layers.SendToBack(shapes, id)
	})
}

// SetZIndex implements scene.Mutator.
func (s *Store) SetZIndex(ctx context.Context, id string, z int) error {
	return s.relayer(ctx, id, func(shapes []scene.Shape) ([]layers.Change, error) {
		return layers.SetExplicit(shapes, id, z)
	})
}

// relayer loads the full layer set, computes the neighbor shifts, and
// applies them in one transaction.
func (s *Store) relayer(ctx context.Context, id string, plan func([]scene.Shape) ([]layers.Change, error)) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		shapes, err := loadLayerSet(ctx, tx)
		if err != nil {
			return err
		}
		changes, err := plan(shapes)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			if _, err := tx.ExecContext(ctx,
				`UPDATE shapes SET z_index = ? WHERE id = ?`, ch.Z, ch.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, layers.ErrUnknownShape) {
			return fmt.Errorf("relayer %s: %w", id, ErrNotFound)
		}
		var lErr *layers.LayerIndexError
		if errors.As(err, &lErr) {
			return err
		}
		return fmt.Errorf("relayer %s: %w", id, err)
	}
	return nil
}

func loadLayerSet(ctx context.Context, tx *sql.Tx) ([]scene.Shape, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, z_index FROM shapes ORDER BY seq, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []scene.Shape
	for rows.Next() {
		var sh scene.Shape
		if err := rows.Scan(&sh.ID, &sh.ZIndex); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// SelectShape implements scene.Mutator.
func (s *Store) SelectShape(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO selection (shape_id)
		 SELECT id FROM shapes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("select shape %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either already selected or unknown; distinguish the two.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM shapes WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("select shape %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

// DeselectAll implements scene.Mutator.
func (s *Store) DeselectAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM selection`); err != nil {
		return fmt.Errorf("deselect all: %w", err)
	}
	return nil
}

// Snapshot implements scene.Mutator.
func (s *Store) Snapshot(ctx context.Context) (*scene.Document, error) {
	doc := &scene.Document{Shapes: make(map[string]scene.Shape)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, x, y, width, height, radius, x2, y2,
		       text, font_size, color, stroke_color, stroke_width,
		       opacity, rotation, z_index, visible, locked, seq
		FROM shapes ORDER BY seq, id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot shapes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sh scene.Shape
		var kind string
		var visible, locked int
		if err := rows.Scan(&sh.ID, &kind, &sh.Name, &sh.X, &sh.Y,
			&sh.Width, &sh.Height, &sh.Radius, &sh.X2, &sh.Y2,
			&sh.Text, &sh.FontSize, &sh.Color, &sh.StrokeColor, &sh.StrokeWidth,
			&sh.Opacity, &sh.Rotation, &sh.ZIndex, &visible, &locked, &sh.Seq); err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		sh.Kind = scene.Kind(kind)
		sh.Visible = visible != 0
		sh.Locked = locked != 0
		doc.Shapes[sh.ID] = sh
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sel, err := s.db.QueryContext(ctx,
		`SELECT selection.shape_id FROM selection
		 JOIN shapes ON shapes.id = selection.shape_id
		 ORDER BY shapes.seq, shapes.id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot selection: %w", err)
	}
	defer sel.Close()
	for sel.Next() {
		var id string
		if err := sel.Scan(&id); err != nil {
			return nil, err
		}
		doc.Selection = append(doc.Selection, id)
	}
	if err := sel.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT pan_x, pan_y, scale FROM viewport WHERE id = 1`).
		Scan(&doc.Viewport.PanX, &doc.Viewport.PanY, &doc.Viewport.Scale)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot viewport: %w", err)
	}
	if doc.Viewport.Scale == 0 {
		doc.Viewport.Scale = 1
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT width, height FROM canvas WHERE id = 1`).
		Scan(&doc.Bounds.Width, &doc.Bounds.Height)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot canvas: %w", err)
	}

	return doc, nil
}

// SetViewport updates the pan and zoom state.
func (s *Store) SetViewport(ctx context.Context, v scene.Viewport) error {
	if v.Scale <= 0 {
		return fmt.Errorf("set viewport: scale must be > 0, got %v", v.Scale)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE viewport SET pan_x = ?, pan_y = ?, scale = ? WHERE id = 1`,
		v.PanX, v.PanY, v.Scale)
	if err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// interface check
var _ scene.Mutator = (*Store)(nil)
