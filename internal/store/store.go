// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package store persists snow maps and snow line altitudes per glacier, date and model
// in a SQLite database.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/grid"
	_ "modernc.org/sqlite"
)

// schema.sql creates the snow_cover table, keyed by glacier, date and model
//
//go:embed schema.sql
var schemaSQL string

// Layout of dates in the store
const DateLayout = "2006-01-02"

// Returned by Get when no record exists for the key
var ErrNotFound = errors.New("record not found")

// A stored classification of one glacier on one date with one model
type Record struct {
	Glacier      string             `json:"glacier"`
	Date         time.Time          `json:"date"`
	Model        classify.Algorithm `json:"model"`
	SLA          *float64           `json:"sla"`
	R2           *float64           `json:"rSquared,omitempty"`
	SnowFraction float64            `json:"snowFraction"`
	Status       classify.Status    `json:"status"`
	Rows         int                `json:"rows"`
	Cols         int                `json:"cols"`
	Mask         *grid.Mask         `json:"-"`
	RunID        uuid.UUID          `json:"runId"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Creates a record from a classification result
func NewRecord(glacier string, date time.Time, res *classify.Result, runID uuid.UUID) *Record {
	r := &Record{
		Glacier:      glacier,
		Date:         date,
		Model:        res.Algorithm,
		SLA:          res.SLAOrNil(),
		R2:           res.R2OrNil(),
		SnowFraction: res.SnowFraction(),
		Status:       res.Status,
		Mask:         res.Mask,
		RunID:        runID,
	}
	if res.Mask != nil {
		r.Rows, r.Cols = res.Mask.Rows, res.Mask.Cols
	}
	return r
}

// A SQLite database of classification records
type Store struct {
	*sql.DB
}

// Opens or creates the database at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // single writer
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db}, nil
}

// Inserts a record, replacing an existing one for the same glacier, date and model
func (s *Store) Put(r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO snow_cover (glacier, date, model, sla, r_squared, snow_fraction, status, n_rows, n_cols, mask, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (glacier, date, model) DO UPDATE SET
			sla = excluded.sla,
			r_squared = excluded.r_squared,
			snow_fraction = excluded.snow_fraction,
			status = excluded.status,
			n_rows = excluded.n_rows,
			n_cols = excluded.n_cols,
			mask = excluded.mask,
			run_id = excluded.run_id,
			created_at = excluded.created_at
	`
	_, err := s.Exec(query, r.Glacier, r.Date.Format(DateLayout), string(r.Model), nullFloat(r.SLA),
		nullFloat(r.R2), r.SnowFraction, string(r.Status), r.Rows, r.Cols, encodeMask(r.Mask),
		r.RunID.String(), r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store %s %s %s: %w", r.Glacier, r.Date.Format(DateLayout), r.Model, err)
	}
	return nil
}

// Retrieves the record for glacier, date and model, including its mask
func (s *Store) Get(glacier string, date time.Time, model classify.Algorithm) (*Record, error) {
	query := `
		SELECT glacier, date, model, sla, r_squared, snow_fraction, status, n_rows, n_cols, mask, run_id, created_at
		FROM snow_cover
		WHERE glacier = ? AND date = ? AND model = ?
	`
	row := s.QueryRow(query, glacier, date.Format(DateLayout), string(model))
	r, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Retrieves all records of a glacier and model ordered by date, without masks
func (s *Store) Series(glacier string, model classify.Algorithm) ([]*Record, error) {
	query := `
		SELECT glacier, date, model, sla, r_squared, snow_fraction, status, n_rows, n_cols, NULL, run_id, created_at
		FROM snow_cover
		WHERE glacier = ? AND model = ?
		ORDER BY date
	`
	rows, err := s.Query(query, glacier, string(model))
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var res []*Record
	for rows.Next() {
		r, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, withMask bool) (*Record, error) {
	var (
		r                   Record
		date, model, status string
		runID, createdAt    string
		sla, r2             sql.NullFloat64
		mask                []byte
	)
	err := sc.Scan(&r.Glacier, &date, &model, &sla, &r2, &r.SnowFraction, &status, &r.Rows, &r.Cols,
		&mask, &runID, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Model, r.Status = classify.Algorithm(model), classify.Status(status)
	if r.Date, err = time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid creation time %q: %w", createdAt, err)
	}
	if r.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run ID %q: %w", runID, err)
	}
	if sla.Valid {
		r.SLA = &sla.Float64
	}
	if r2.Valid {
		r.R2 = &r2.Float64
	}
	if withMask && mask != nil {
		if r.Mask, err = decodeMask(mask, r.Rows, r.Cols); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Packs a mask into bits, row-major, least significant bit first
func encodeMask(m *grid.Mask) []byte {
	if m == nil {
		return nil
	}
	buf := make([]byte, (len(m.Data)+7)/8)
	for i, snow := range m.Data {
		if snow {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

func decodeMask(buf []byte, rows, cols int) (*grid.Mask, error) {
	if len(buf) != (rows*cols+7)/8 {
		return nil, fmt.Errorf("mask of %d bytes does not fit %dx%d pixels", len(buf), cols, rows)
	}
	m := grid.NewMask(rows, cols)
	for i := range m.Data {
		m.Data[i] = buf[i/8]&(1<<(i%8)) != 0
	}
	return m, nil
}
