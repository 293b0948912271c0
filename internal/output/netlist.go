// Package output derives the two deliverables of a finished resolution
// run: the netlist (connections between selected parts) and the bill of
// materials. Both generators are pure over the design state — running
// them twice on an unchanged state yields identical documents.
package output

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kairo-ai/kairo/internal/model"
)

// milPerAmp is the rule-of-thumb trace width for 1 oz copper.
const milPerAmp = 20.0

// traceWidthBands are the allowed recommended widths, in mil. Estimates
// are rounded up to the next band.
var traceWidthBands = []int{10, 20, 40, 60, 100}

const (
	diffImpedanceOhms  = 100.0 // USB/Ethernet/HDMI/MIPI/LVDS class buses
	clockImpedanceOhms = 50.0
)

// pinClassTable maps pin-name tokens to net classes. First hit wins, so
// ground tokens come before power (AGND must not match on "A" rails) and
// differential bus tokens before generic signal fallthrough.
var pinClassTable = []struct {
	tokens []string
	class  model.NetClass
}{
	{[]string{"GND", "GROUND", "VSS", "AGND", "DGND", "PGND", "EP"}, model.NetClassGround},
	{[]string{"VDD", "VCC", "VIN", "VOUT", "VBAT", "VBUS", "AVDD", "DVDD", "PWR", "3V3", "5V", "V+"}, model.NetClassPower},
	{[]string{"USB_D", "ETH_", "HDMI_", "MIPI_", "LVDS_", "MDI", "_DP", "_DM"}, model.NetClassDifferential},
	{[]string{"CLK", "XTAL", "OSC", "SCLK", "MCLK", "REFCLK"}, model.NetClassClock},
}

// ClassifyPin maps a pin name to its net class by name pattern alone.
// Unrecognized names default to signal.
func ClassifyPin(name string) model.NetClass {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, row := range pinClassTable {
		for _, tok := range row.tokens {
			if strings.Contains(upper, tok) {
				return row.class
			}
		}
	}
	return model.NetClassSignal
}

// RailName derives a power net name from a voltage, e.g. 3.3 → VCC_3V3.
func RailName(volts float64) string {
	whole := int(volts)
	tenth := int(math.Round(volts*10)) % 10
	return fmt.Sprintf("VCC_%dV%d", whole, tenth)
}

// TraceWidthMil returns the recommended trace width band for a current
// estimate, rounding up to the next standard band.
func TraceWidthMil(amps float64) int {
	raw := amps * milPerAmp
	for _, band := range traceWidthBands {
		if raw <= float64(band) {
			return band
		}
	}
	return traceWidthBands[len(traceWidthBands)-1]
}

// netBuilder accumulates pins per net name in first-touch order so the
// output is deterministic across runs.
type netBuilder struct {
	order []string
	nets  map[string]*model.Net
}

func newNetBuilder() *netBuilder {
	return &netBuilder{nets: make(map[string]*model.Net)}
}

func (b *netBuilder) add(name string, class model.NetClass, pin model.PinRef) {
	n, ok := b.nets[name]
	if !ok {
		n = &model.Net{Name: name, Class: class}
		b.nets[name] = n
		b.order = append(b.order, name)
	}
	n.Pins = append(n.Pins, pin)
}

func (b *netBuilder) build() []model.Net {
	out := make([]model.Net, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.nets[name])
	}
	return out
}

// intermediaryRole records that a block in the resolution order was
// inserted as an intermediary rather than selected for an architecture
// block directly.
type intermediaryRole struct {
	target    string
	direction model.IntermediaryDirection
}

// Generator produces netlist and BOM documents from a design state.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil logger falls back to the
// default slog logger.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger}
}

// Netlist derives the connection list from the selected parts' declared
// pins. Power pins of a block with a registered power intermediary are
// routed through it: the source rail feeds the intermediary's VIN and
// the intermediary's VOUT rail feeds the block.
func (g *Generator) Netlist(state *model.DesignState) []model.Net {
	blocks := state.BlockNames()
	roles := make(map[string]intermediaryRole)
	for _, block := range blocks {
		refs, ok := state.Intermediaries(block)
		if !ok {
			continue
		}
		if refs.Power != "" {
			roles[refs.Power] = intermediaryRole{target: block, direction: model.IntermediaryPower}
		}
		if refs.Signal != "" {
			roles[refs.Signal] = intermediaryRole{target: block, direction: model.IntermediarySignal}
		}
	}

	sourceRail := g.sourceRail(state, blocks, roles)
	b := newNetBuilder()

	for _, block := range blocks {
		part, ok := state.Part(block)
		if !ok {
			continue
		}
		if len(part.Pins) == 0 {
			g.logger.Debug("block part declares no pins, skipping in netlist",
				"block", block, "part", part.ID)
			continue
		}

		role, isIntermediary := roles[block]
		rail := g.blockRail(state, block, sourceRail)

		for _, pin := range part.Pins {
			ref := model.PinRef{PartID: part.ID, Pin: pin}
			class := ClassifyPin(pin)
			switch class {
			case model.NetClassGround:
				b.add("GND", model.NetClassGround, ref)
			case model.NetClassPower:
				switch {
				case isIntermediary && role.direction == model.IntermediaryPower && isInputPin(pin):
					b.add(sourceRail, model.NetClassPower, ref)
				case isIntermediary && role.direction == model.IntermediaryPower && isOutputPin(pin):
					b.add(g.blockRail(state, role.target, sourceRail), model.NetClassPower, ref)
				default:
					b.add(rail, model.NetClassPower, ref)
				}
			default:
				b.add(strings.ToUpper(strings.TrimSpace(pin)), class, ref)
			}
		}
	}

	nets := b.build()
	g.annotate(nets, state)
	return nets
}

// sourceRail is the net every non-converted power pin joins: the rail
// named after the anchor part's nominal supply voltage. Intermediary
// blocks are skipped when locating the anchor.
func (g *Generator) sourceRail(state *model.DesignState, blocks []string, roles map[string]intermediaryRole) string {
	for _, block := range blocks {
		if _, isInter := roles[block]; isInter {
			continue
		}
		part, ok := state.Part(block)
		if !ok {
			continue
		}
		if v, ok := part.NominalV(); ok {
			return RailName(v)
		}
	}
	return "VCC"
}

// blockRail is the power net feeding a block: the VOUT rail of its
// power intermediary when one is registered, otherwise the rail named
// after the block part's own nominal voltage, else the shared source.
func (g *Generator) blockRail(state *model.DesignState, block, sourceRail string) string {
	if refs, ok := state.Intermediaries(block); ok && refs.Power != "" {
		if inter, ok := state.Part(refs.Power); ok {
			if v, ok := inter.SourceVoltage(); ok {
				return RailName(v)
			}
		}
	}
	if part, ok := state.Part(block); ok {
		if v, ok := part.NominalV(); ok {
			return RailName(v)
		}
	}
	return sourceRail
}

func isInputPin(pin string) bool {
	return strings.Contains(strings.ToUpper(pin), "VIN")
}

func isOutputPin(pin string) bool {
	return strings.Contains(strings.ToUpper(pin), "VOUT")
}

// annotate attaches the advisory engineering tags: current estimates and
// trace widths for power and ground nets, impedance for clock and
// differential nets. All advisory, nothing is verified against physics.
func (g *Generator) annotate(nets []model.Net, state *model.DesignState) {
	draws := partDraws(state)
	for i := range nets {
		n := &nets[i]
		switch n.Class {
		case model.NetClassPower, model.NetClassGround:
			total := 0.0
			for _, ref := range n.Pins {
				if n.Class == model.NetClassPower && isOutputPin(ref.Pin) {
					continue // the source pin supplies, it does not draw
				}
				total += draws[ref.PartID]
			}
			estimate := total
			width := TraceWidthMil(estimate)
			n.CurrentEstimateA = &estimate
			n.TraceWidthMil = &width
		case model.NetClassDifferential:
			imp := diffImpedanceOhms
			n.ImpedanceOhms = &imp
		case model.NetClassClock:
			imp := clockImpedanceOhms
			n.ImpedanceOhms = &imp
		}
	}
}

func partDraws(state *model.DesignState) map[string]float64 {
	draws := make(map[string]float64)
	for _, block := range state.BlockNames() {
		if part, ok := state.Part(block); ok {
			draws[part.ID] = part.MaxCurrentA()
		}
	}
	return draws
}
