package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kairo-ai/kairo/internal/model"
)

// FileSource loads part records from a directory of catalog JSON files,
// one document per category with a top-level "parts" array.
type FileSource struct {
	dir    string
	glob   string
	logger *slog.Logger
}

// catalogDocument is the on-disk shape of one catalog file.
type catalogDocument struct {
	Category string            `json:"category"`
	Parts    []json.RawMessage `json:"parts"`
}

// NewFileSource creates a source globbing pattern (default "**/*.json")
// under dir.
func NewFileSource(dir, glob string, logger *slog.Logger) *FileSource {
	if glob == "" {
		glob = "**/*.json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{dir: dir, glob: glob, logger: logger}
}

// LoadParts reads every matching catalog file. A malformed document skips
// that file; a malformed or schema-violating record skips that record.
// Only an unreadable directory is fatal.
func (s *FileSource) LoadParts(ctx context.Context) ([]model.PartRecord, error) {
	pattern := filepath.Join(s.dir, s.glob)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no catalog files match %q", pattern)
	}
	sort.Strings(matches) // deterministic catalog order across runs

	var parts []model.PartRecord
	for _, path := range matches {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		parts = append(parts, s.loadFile(path)...)
	}
	return parts, nil
}

func (s *FileSource) loadFile(path string) []model.PartRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("catalog: unreadable file skipped", "file", path, "error", err)
		return nil
	}

	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("catalog: malformed document skipped", "file", path, "error", err)
		return nil
	}

	parts := make([]model.PartRecord, 0, len(doc.Parts))
	for _, raw := range doc.Parts {
		p, err := decodePart(raw, doc.Category, s.logger)
		if err != nil {
			s.logger.Warn("catalog: invalid record dropped", "file", path, "reason", err)
			continue
		}
		parts = append(parts, p)
	}
	return parts
}
