package kairo

import "encoding/json"

// Part is the public representation of a catalog part record. It is a
// curated view of internal/model.PartRecord for use in extension
// interfaces and CLI output. No internal package imports — safe to use
// from outside the module.
type Part struct {
	ID           string
	MPN          string
	Manufacturer string
	Category     string
	Package      string

	// SupplyMin/SupplyMax/SupplyNominal describe the supply voltage
	// window in volts; nil means undeclared.
	SupplyMin     *float64
	SupplyMax     *float64
	SupplyNominal *float64
	// OutputVoltage is set for parts that source power downstream.
	OutputVoltage *float64

	Interfaces   []string
	Lifecycle    string
	Availability string
	CostUSD      float64

	// Score is the ranking score when the part came from a search;
	// zero for direct lookups.
	Score float64
}

// Assessment is the verdict of one pairwise compatibility check.
type Assessment struct {
	Compatible      bool
	Reasoning       string
	Risks           []string
	RequiredBuffers []string
	Warnings        []string
}

// Result is the outcome of one resolution run. Design is the full design
// state document (parts, intermediaries, nets, BOM) as JSON; it is always
// present, possibly partial when the run errored.
type Result struct {
	RunID         string
	State         string
	SkippedBlocks []string
	Design        json.RawMessage
}
