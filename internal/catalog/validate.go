package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kairo-ai/kairo/internal/model"
)

// decodePart parses and validates one raw catalog record. It is the
// single construction path for PartRecord: every source funnels through
// here so the required-field schema is enforced uniformly.
//
// fallbackCategory fills a missing category from the enclosing document.
// Validation failures return an error; the caller skips and logs the
// record, never aborts the load.
func decodePart(raw json.RawMessage, fallbackCategory string, logger *slog.Logger) (model.PartRecord, error) {
	var p model.PartRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.PartRecord{}, fmt.Errorf("malformed record: %w", err)
	}

	if p.Category == "" {
		p.Category = fallbackCategory
	}
	if p.ID == "" {
		return model.PartRecord{}, fmt.Errorf("missing required field id")
	}
	if p.MPN == "" {
		return model.PartRecord{}, fmt.Errorf("part %s: missing required field mpn", p.ID)
	}
	if p.Manufacturer == "" {
		return model.PartRecord{}, fmt.Errorf("part %s: missing required field manufacturer", p.ID)
	}
	if p.Category == "" {
		return model.PartRecord{}, fmt.Errorf("part %s: missing required field category", p.ID)
	}

	// Unknown lifecycle values default to active for scoring but are logged.
	lc, known := model.ParseLifecycle(string(p.Lifecycle))
	if !known && p.Lifecycle != "" {
		logger.Warn("catalog: unknown lifecycle status, defaulting to active", "id", p.ID, "lifecycle", p.Lifecycle)
	}
	p.Lifecycle = lc
	p.Availability = model.AvailabilityStatus(strings.ToLower(string(p.Availability)))

	if p.SupplyVoltage.Min != nil && p.SupplyVoltage.Max != nil && *p.SupplyVoltage.Min > *p.SupplyVoltage.Max {
		return model.PartRecord{}, fmt.Errorf("part %s: supply voltage min %.2f above max %.2f", p.ID, *p.SupplyVoltage.Min, *p.SupplyVoltage.Max)
	}

	return p, nil
}
