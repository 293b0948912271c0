package model

// ConnectionType distinguishes the two kinds of pairwise compatibility
// check the pipeline performs.
type ConnectionType string

const (
	ConnectionPower     ConnectionType = "power"
	ConnectionInterface ConnectionType = "interface"
)

// VoltageGap is the structured description of a power incompatibility.
// A populated gap is the only thing that can trigger intermediary
// resolution.
type VoltageGap struct {
	SourceVoltage float64 `json:"source_voltage"`
	TargetMin     float64 `json:"target_min"`
	TargetMax     float64 `json:"target_max"`
	TargetNominal float64 `json:"target_nominal"`
}

// CompatibilityResult is the verdict of one pairwise check.
type CompatibilityResult struct {
	Compatible      bool        `json:"compatible"`
	Reasoning       string      `json:"reasoning,omitempty"`
	Risks           []string    `json:"risks,omitempty"`
	RequiredBuffers []string    `json:"required_buffers,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
	VoltageGap      *VoltageGap `json:"voltage_gap,omitempty"`
}

// CompatibilityPair groups the interface and power verdicts recorded for
// one resolved block.
type CompatibilityPair struct {
	Interface *CompatibilityResult `json:"interface,omitempty"`
	Power     *CompatibilityResult `json:"power,omitempty"`
}
