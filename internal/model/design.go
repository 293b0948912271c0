package model

import (
	"encoding/json"
	"fmt"
)

// IntermediaryDirection distinguishes the one power and one signal
// intermediary a block may receive.
type IntermediaryDirection string

const (
	IntermediaryPower  IntermediaryDirection = "power"
	IntermediarySignal IntermediaryDirection = "signal"
)

// IntermediaryRefs names the intermediary blocks inserted in front of a
// resolved block, at most one per direction.
type IntermediaryRefs struct {
	Power  string `json:"power,omitempty"`
	Signal string `json:"signal,omitempty"`
}

// DesignState is the single mutable aggregate of one orchestrator run.
// It is owned exclusively by that run and mutated only through its
// methods; once Finalize is called all mutators reject further writes.
// Never share one DesignState across concurrent runs.
type DesignState struct {
	selected  map[string]PartRecord
	order     []string // insertion order = resolution order
	external  []PassiveSpec
	compat    map[string]CompatibilityPair
	inter     map[string]IntermediaryRefs
	nets      []Net
	bom       *BOM
	finalized bool
}

// NewDesignState creates an empty design state for one resolution run.
func NewDesignState() *DesignState {
	return &DesignState{
		selected: make(map[string]PartRecord),
		compat:   make(map[string]CompatibilityPair),
		inter:    make(map[string]IntermediaryRefs),
	}
}

// ErrFinalized is returned by mutators after Finalize.
var ErrFinalized = fmt.Errorf("design state is finalized")

// AddPart records the part selected for a block. Re-adding an existing
// block name replaces the record without disturbing resolution order.
func (s *DesignState) AddPart(block string, part PartRecord) error {
	if s.finalized {
		return ErrFinalized
	}
	if _, exists := s.selected[block]; !exists {
		s.order = append(s.order, block)
	}
	s.selected[block] = part
	return nil
}

// Part returns the part selected for a block.
func (s *DesignState) Part(block string) (PartRecord, bool) {
	p, ok := s.selected[block]
	return p, ok
}

// BlockNames returns block names in resolution order. The returned slice
// is a copy.
func (s *DesignState) BlockNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// PartCount returns the number of selected parts, intermediaries included.
func (s *DesignState) PartCount() int { return len(s.selected) }

// SetCompatibility records the interface/power verdicts for a block.
func (s *DesignState) SetCompatibility(block string, pair CompatibilityPair) error {
	if s.finalized {
		return ErrFinalized
	}
	s.compat[block] = pair
	return nil
}

// Compatibility returns the recorded verdicts for a block.
func (s *DesignState) Compatibility(block string) (CompatibilityPair, bool) {
	p, ok := s.compat[block]
	return p, ok
}

// AddIntermediary places an intermediary part in front of a block. Each
// block accepts at most one intermediary per direction; a second insert
// in the same direction is rejected.
func (s *DesignState) AddIntermediary(block string, dir IntermediaryDirection, interBlock string, part PartRecord) error {
	if s.finalized {
		return ErrFinalized
	}
	refs := s.inter[block]
	switch dir {
	case IntermediaryPower:
		if refs.Power != "" {
			return fmt.Errorf("block %q already has a power intermediary %q", block, refs.Power)
		}
		refs.Power = interBlock
	case IntermediarySignal:
		if refs.Signal != "" {
			return fmt.Errorf("block %q already has a signal intermediary %q", block, refs.Signal)
		}
		refs.Signal = interBlock
	default:
		return fmt.Errorf("unknown intermediary direction %q", dir)
	}
	if err := s.AddPart(interBlock, part); err != nil {
		return err
	}
	s.inter[block] = refs
	return nil
}

// Intermediaries returns the intermediary references for a block.
func (s *DesignState) Intermediaries(block string) (IntermediaryRefs, bool) {
	r, ok := s.inter[block]
	return r, ok
}

// AddExternalComponents appends recommended passives to the design.
func (s *DesignState) AddExternalComponents(specs ...PassiveSpec) error {
	if s.finalized {
		return ErrFinalized
	}
	s.external = append(s.external, specs...)
	return nil
}

// ExternalComponents returns the accumulated passive specs in insertion
// order. The returned slice is a copy.
func (s *DesignState) ExternalComponents() []PassiveSpec {
	out := make([]PassiveSpec, len(s.external))
	copy(out, s.external)
	return out
}

// SetOutputs records the generated netlist and BOM.
func (s *DesignState) SetOutputs(nets []Net, bom *BOM) error {
	if s.finalized {
		return ErrFinalized
	}
	s.nets = nets
	s.bom = bom
	return nil
}

// Connections returns the generated netlist.
func (s *DesignState) Connections() []Net { return s.nets }

// BOM returns the generated bill of materials, nil before generation.
func (s *DesignState) BOM() *BOM { return s.bom }

// Finalize marks the state read-only. Idempotent.
func (s *DesignState) Finalize() { s.finalized = true }

// Finalized reports whether Finalize has been called.
func (s *DesignState) Finalized() bool { return s.finalized }

// designStateJSON is the serialized shape of the output contract.
type designStateJSON struct {
	SelectedParts        map[string]PartRecord        `json:"selected_parts"`
	ResolutionOrder      []string                     `json:"resolution_order"`
	ExternalComponents   []PassiveSpec                `json:"external_components"`
	CompatibilityResults map[string]CompatibilityPair `json:"compatibility_results"`
	Intermediaries       map[string]IntermediaryRefs  `json:"intermediaries"`
	Connections          []Net                        `json:"connections"`
	BOM                  *BOM                         `json:"bom"`
}

// MarshalJSON serializes the state per the output contract, including the
// resolution order that a plain map would lose.
func (s *DesignState) MarshalJSON() ([]byte, error) {
	return json.Marshal(designStateJSON{
		SelectedParts:        s.selected,
		ResolutionOrder:      s.order,
		ExternalComponents:   s.external,
		CompatibilityResults: s.compat,
		Intermediaries:       s.inter,
		Connections:          s.nets,
		BOM:                  s.bom,
	})
}

// UnmarshalJSON restores a serialized state. Used by consumers that
// re-load a design document; the restored state is not finalized.
func (s *DesignState) UnmarshalJSON(data []byte) error {
	var raw designStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.selected = raw.SelectedParts
	if s.selected == nil {
		s.selected = make(map[string]PartRecord)
	}
	s.order = raw.ResolutionOrder
	s.external = raw.ExternalComponents
	s.compat = raw.CompatibilityResults
	if s.compat == nil {
		s.compat = make(map[string]CompatibilityPair)
	}
	s.inter = raw.Intermediaries
	if s.inter == nil {
		s.inter = make(map[string]IntermediaryRefs)
	}
	s.nets = raw.Connections
	s.bom = raw.BOM
	s.finalized = false
	return nil
}
