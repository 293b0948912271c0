package model

// BOMItem is one line of the bill of materials. A single line may
// represent several physical parts sharing a designator range
// (e.g. "C1-C4").
type BOMItem struct {
	Designator   string `json:"designator"`
	Quantity     int    `json:"quantity"`
	PartID       string `json:"part_id,omitempty"`
	MPN          string `json:"mpn,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Description  string `json:"description,omitempty"`
	Footprint    string `json:"footprint,omitempty"`

	UnitCost     float64 `json:"unit_cost"`
	ExtendedCost float64 `json:"extended_cost"`
	Currency     string  `json:"currency,omitempty"`

	Lifecycle    LifecycleStatus    `json:"lifecycle_status,omitempty"`
	Availability AvailabilityStatus `json:"availability,omitempty"`

	MountingType  string `json:"mounting_type,omitempty"` // smt | through_hole
	AssemblySide  string `json:"assembly_side,omitempty"`
	MSL           int    `json:"msl,omitempty"`
	AssemblyNotes string `json:"assembly_notes,omitempty"`
}

// BOMSummary is the document-level rollup.
type BOMSummary struct {
	TotalCost  float64 `json:"total_cost"`
	TotalParts int     `json:"total_parts"` // distinct selected parts
	TotalQty   int     `json:"total_qty"`   // physical piece count
}

// BOMMetadata identifies the generation run that produced the document.
type BOMMetadata struct {
	Revision    string `json:"revision"`
	GeneratedBy string `json:"generated_by"`
}

// BOM is the complete bill of materials document.
type BOM struct {
	Items    []BOMItem   `json:"items"`
	Summary  BOMSummary  `json:"summary"`
	Metadata BOMMetadata `json:"metadata"`
}
