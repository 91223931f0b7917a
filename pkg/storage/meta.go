// Package storage persists built frequency maps in sqlite: one row of
// build metadata per map plus one row per bucket, with the infinity
// sentinel carried through the rate column.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gapscan/pkg/bucket"
	"gapscan/pkg/freqmap"
)

// ErrMapNotFound reports a load for a map name that was never saved.
var ErrMapNotFound = errors.New("storage: map not found")

// EnsureTables creates the map tables if they do not exist.
func EnsureTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gap_maps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			scheme TEXT NOT NULL,
			modulus INTEGER NOT NULL,
			gap_small REAL,
			gap_large REAL,
			start_index INTEGER NOT NULL,
			pair_count INTEGER NOT NULL,
			skipped INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS gap_map_buckets (
			map_id INTEGER NOT NULL,
			bucket_key TEXT NOT NULL,
			anchors INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			rate TEXT NOT NULL,
			UNIQUE(map_id, bucket_key)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// MapInfo is the stored build metadata for one map.
type MapInfo struct {
	Name       string  `json:"name"`
	Scheme     string  `json:"scheme"`
	Modulus    uint64  `json:"modulus"`
	GapSmall   float64 `json:"gap_small,omitempty"`
	GapLarge   float64 `json:"gap_large,omitempty"`
	StartIndex int     `json:"start_index"`
	PairCount  int     `json:"pair_count"`
	Skipped    uint64  `json:"skipped"`
	CreatedAt  string  `json:"created_at"`
}

// SaveMap stores a built map under name, replacing any previous map of
// the same name. The whole write happens in one transaction.
func SaveMap(ctx context.Context, db *sql.DB, name string, m *freqmap.Map, startIndex, pairCount int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var gapSmall, gapLarge sql.NullFloat64
	if m.Scheme.Gaps != nil {
		gapSmall = sql.NullFloat64{Float64: m.Scheme.Gaps.Small, Valid: true}
		gapLarge = sql.NullFloat64{Float64: m.Scheme.Gaps.Large, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO gap_maps(name,scheme,modulus,gap_small,gap_large,start_index,pair_count,skipped,created_at)
		VALUES(?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			scheme=excluded.scheme, modulus=excluded.modulus,
			gap_small=excluded.gap_small, gap_large=excluded.gap_large,
			start_index=excluded.start_index, pair_count=excluded.pair_count,
			skipped=excluded.skipped, created_at=CURRENT_TIMESTAMP`,
		name, m.Scheme.Name(), m.Scheme.Modulus, gapSmall, gapLarge,
		startIndex, pairCount, m.Skipped)
	if err != nil {
		return err
	}

	// An upsert of an existing name keeps its row id; fetch it either way.
	var mapID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM gap_maps WHERE name = ?`, name).Scan(&mapID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM gap_map_buckets WHERE map_id = ?`, mapID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gap_map_buckets(map_id,bucket_key,anchors,failures,rate)
		VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, k := range m.Scheme.Domain() {
		b := m.Buckets[k]
		if _, err := stmt.ExecContext(ctx, mapID, k.String(), b.Anchors, b.Failures, freqmap.FormatRate(b.Rate())); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadMap reads a stored map back, counts included.
func LoadMap(ctx context.Context, db *sql.DB, name string) (*freqmap.Map, error) {
	var (
		mapID    int64
		modulus  uint64
		gapSmall sql.NullFloat64
		gapLarge sql.NullFloat64
		skipped  uint64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, modulus, gap_small, gap_large, skipped
		FROM gap_maps WHERE name = ?`, name).
		Scan(&mapID, &modulus, &gapSmall, &gapLarge, &skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	scheme := bucket.Scheme{Modulus: modulus}
	if gapSmall.Valid && gapLarge.Valid {
		scheme.Gaps = &bucket.Thresholds{Small: gapSmall.Float64, Large: gapLarge.Float64}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT bucket_key, anchors, failures
		FROM gap_map_buckets WHERE map_id = ?`, mapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := &freqmap.Map{
		Scheme:  scheme,
		Buckets: make(map[bucket.Key]freqmap.Bucket, scheme.Size()),
		Skipped: skipped,
	}
	for rows.Next() {
		var (
			ks                string
			anchors, failures uint64
		)
		if err := rows.Scan(&ks, &anchors, &failures); err != nil {
			return nil, err
		}
		k, err := bucket.ParseKey(ks)
		if err != nil {
			return nil, err
		}
		m.Buckets[k] = freqmap.Bucket{Anchors: anchors, Failures: failures}
	}
	return m, rows.Err()
}

// ListMaps returns metadata for every stored map, newest first.
func ListMaps(ctx context.Context, db *sql.DB) ([]MapInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, scheme, modulus, gap_small, gap_large,
		       start_index, pair_count, skipped, created_at
		FROM gap_maps ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []MapInfo
	for rows.Next() {
		var (
			info     MapInfo
			gapSmall sql.NullFloat64
			gapLarge sql.NullFloat64
		)
		if err := rows.Scan(&info.Name, &info.Scheme, &info.Modulus,
			&gapSmall, &gapLarge, &info.StartIndex, &info.PairCount,
			&info.Skipped, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.GapSmall = gapSmall.Float64
		info.GapLarge = gapLarge.Float64
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
