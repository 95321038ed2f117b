package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atelierink/sketchd/dbopen"
)

// ColorCap is the number of recently used colors retained.
const ColorCap = 12

// TouchColor marks a color as just used, trimming the list to ColorCap.
// Re-using a known color moves it back to the front.
func (s *Store) TouchColor(ctx context.Context, color string) error {
	if color == "" {
		return nil
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recent_colors (color, used_at) VALUES (?, ?)
			ON CONFLICT(color) DO UPDATE SET used_at = excluded.used_at`,
			color, time.Now().UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("history: touch color: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM recent_colors WHERE color NOT IN (
				SELECT color FROM recent_colors ORDER BY used_at DESC LIMIT ?
			)`, ColorCap)
		if err != nil {
			return fmt.Errorf("history: trim colors: %w", err)
		}
		return nil
	})
}

// RecentColors returns the retained colors, most recently used first.
func (s *Store) RecentColors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT color FROM recent_colors ORDER BY used_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: recent colors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
