package model

// BlockDescriptor describes one functional block of an input architecture:
// what kind of part it needs and what it must talk to.
type BlockDescriptor struct {
	Type               string   `json:"type"`
	Description        string   `json:"description,omitempty"`
	DependsOn          []string `json:"depends_on,omitempty"`
	RequiredInterfaces []string `json:"required_interfaces,omitempty"`
	RequiredPowerRails []string `json:"required_power_rails,omitempty"`
	RequiredGPIOs      int      `json:"required_gpios,omitempty"`
}

// ArchitectureGraph is the opaque input document produced by the external
// reasoning collaborator. The orchestrator reads it but never validates
// semantic correctness beyond the fields it consumes.
type ArchitectureGraph struct {
	AnchorBlock         BlockDescriptor            `json:"anchor_block"`
	ChildBlocks         []BlockDescriptor          `json:"child_blocks"`
	DependencyGraph     map[string][]string        `json:"dependency_graph,omitempty"`
	ConstraintsPerBlock map[string]BlockConstraint `json:"constraints_per_block,omitempty"`
}

// BlockConstraint carries per-block search constraints supplied upstream.
type BlockConstraint struct {
	Voltage      *VoltageRange       `json:"voltage,omitempty"`
	MinCurrentA  *float64            `json:"min_current_a,omitempty"`
	Temp         *TempRange          `json:"operating_temp,omitempty"`
	Availability *AvailabilityStatus `json:"availability,omitempty"`
	Lifecycle    *LifecycleStatus    `json:"lifecycle,omitempty"`
	MaxUnitCost  *float64            `json:"max_unit_cost,omitempty"`
}

// Dependencies returns the block's dependency list, preferring the
// explicit adjacency map over the block's own depends_on field.
func (g *ArchitectureGraph) Dependencies(block BlockDescriptor) []string {
	if deps, ok := g.DependencyGraph[block.Type]; ok {
		return deps
	}
	return block.DependsOn
}

// IndependentOf reports whether the block can be resolved without waiting
// on another block: its dependency list is empty or names only the power
// rail (which the anchor provides).
func (g *ArchitectureGraph) IndependentOf(block BlockDescriptor) bool {
	for _, d := range g.Dependencies(block) {
		if d != "power" {
			return false
		}
	}
	return true
}
