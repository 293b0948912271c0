// Package datasheet is the local store of supplementary part attributes
// scraped from datasheets. The pipeline's enrichment stage merges these
// into selected parts; a missing entry leaves the part unchanged.
package datasheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/kairo-ai/kairo/internal/model"
)

// Attributes are the supplementary fields a datasheet entry may carry.
// Every field is optional; merging only fills gaps in the catalog record.
type Attributes struct {
	Footprint           string              `json:"footprint,omitempty"`
	ThermalResistanceCW *float64            `json:"thermal_resistance_c_w,omitempty"`
	LogicLevelV         *float64            `json:"logic_level_v,omitempty"`
	Efficiency          *float64            `json:"efficiency,omitempty"`
	MSL                 *int                `json:"msl,omitempty"`
	Pins                []string            `json:"pins,omitempty"`
	RecommendedExternal []model.PassiveSpec `json:"recommended_external,omitempty"`
}

// Store is a SQLite-backed datasheet attribute store keyed by part id.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and if necessary initializes) the store at path. Use
// ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("datasheet: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS datasheets (
			part_id    TEXT PRIMARY KEY,
			attrs      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datasheet: init schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored attributes for a part id, found=false when no
// entry exists.
func (s *Store) Get(ctx context.Context, partID string) (Attributes, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT attrs FROM datasheets WHERE part_id = ?`, partID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Attributes{}, false, nil
	}
	if err != nil {
		return Attributes{}, false, fmt.Errorf("datasheet: get %s: %w", partID, err)
	}

	var attrs Attributes
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return Attributes{}, false, fmt.Errorf("datasheet: decode %s: %w", partID, err)
	}
	return attrs, true, nil
}

// Put stores or replaces the attributes for a part id.
func (s *Store) Put(ctx context.Context, partID string, attrs Attributes) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("datasheet: encode %s: %w", partID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datasheets (part_id, attrs, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (part_id) DO UPDATE SET attrs = excluded.attrs, updated_at = CURRENT_TIMESTAMP
	`, partID, string(raw))
	if err != nil {
		return fmt.Errorf("datasheet: put %s: %w", partID, err)
	}
	return nil
}

// Enrich merges stored attributes into a copy of the part. Only fields
// the catalog record left empty are filled; a missing entry or a read
// error returns the part unchanged (errors are logged, never fatal).
func (s *Store) Enrich(ctx context.Context, p model.PartRecord) model.PartRecord {
	attrs, found, err := s.Get(ctx, p.ID)
	if err != nil {
		s.logger.Warn("datasheet: enrichment lookup failed", "part", p.ID, "error", err)
		return p
	}
	if !found {
		return p
	}
	return Merge(p, attrs)
}

// Merge fills absent fields of p from attrs and returns the copy.
func Merge(p model.PartRecord, attrs Attributes) model.PartRecord {
	if p.Footprint == "" && attrs.Footprint != "" {
		p.Footprint = attrs.Footprint
	}
	if p.ThermalResistanceCW == nil && attrs.ThermalResistanceCW != nil {
		p.ThermalResistanceCW = attrs.ThermalResistanceCW
	}
	if p.LogicLevelV == nil && attrs.LogicLevelV != nil {
		p.LogicLevelV = attrs.LogicLevelV
	}
	if p.Efficiency == nil && attrs.Efficiency != nil {
		p.Efficiency = attrs.Efficiency
	}
	if p.MSL == nil && attrs.MSL != nil {
		p.MSL = attrs.MSL
	}
	if len(p.Pins) == 0 && len(attrs.Pins) > 0 {
		p.Pins = attrs.Pins
	}
	if len(p.RecommendedExternal) == 0 && len(attrs.RecommendedExternal) > 0 {
		p.RecommendedExternal = attrs.RecommendedExternal
	}
	return p
}
