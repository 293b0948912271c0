package output

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/search"
)

const (
	generatedBy      = "kairo"
	defaultRevision  = "A"
	fiducialCount    = 3
	signalTestPoints = 2 // fixed allowance for signal debugging

	mslBakeNote   = "Bake before assembly (MSL >= 3)."
	mslStrictNote = "Strict floor-life handling window (MSL >= 5)."
)

// connectorKeywords mark categories that get a J designator instead of U.
var connectorKeywords = []string{"connector", "header", "jack", "receptacle", "plug", "terminal"}

// passivePrefixes maps an external-component kind to its reference
// designator prefix.
var passivePrefixes = map[string]string{
	"capacitor":  "C",
	"resistor":   "R",
	"inductor":   "L",
	"ferrite":    "L",
	"diode":      "D",
	"tvs":        "D",
	"led":        "D",
	"fuse":       "F",
	"crystal":    "Y",
	"oscillator": "Y",
}

// DesignatorPrefix returns the reference-designator prefix for a
// catalog part's category: J for connectors, U for everything else
// (ICs, MCUs, sensors, regulators, modules).
func DesignatorPrefix(category string) string {
	lower := strings.ToLower(category)
	for _, kw := range connectorKeywords {
		if strings.Contains(lower, kw) {
			return "J"
		}
	}
	return "U"
}

// PassivePrefix returns the designator prefix for an external passive
// kind, defaulting to R for unrecognized kinds.
func PassivePrefix(kind string) string {
	if p, ok := passivePrefixes[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return p
	}
	return "R"
}

// chipPackages are the two-pad chip sizes that share a footprint family.
var chipPackages = map[string]bool{
	"0201": true, "0402": true, "0603": true,
	"0805": true, "1206": true, "1210": true, "2512": true,
}

// DeriveFootprint returns the part's footprint name: the explicit field
// when present, otherwise a name derived from the package family.
// Leaded packages are keyed by pin count (SOIC-8 → SOIC-8N).
func DeriveFootprint(p *model.PartRecord) string {
	if p.Footprint != "" {
		return p.Footprint
	}
	return footprintForPackage(p.Package)
}

func footprintForPackage(pkg string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(pkg))
	if trimmed == "" {
		return ""
	}
	if chipPackages[trimmed] {
		return "CHIP-" + trimmed
	}
	family, pins := splitPackage(trimmed)
	switch family {
	case "SOIC", "SOP", "SSOP", "TSSOP", "QFN", "DFN", "QFP", "TQFP", "LQFP", "DIP", "PDIP":
		if pins > 0 {
			return fmt.Sprintf("%s-%dN", family, pins)
		}
	}
	return trimmed
}

// splitPackage separates a package name into its family and pin count,
// e.g. "SOIC-8" → ("SOIC", 8). A missing count returns 0.
func splitPackage(pkg string) (string, int) {
	family, rest, found := strings.Cut(pkg, "-")
	if !found {
		return pkg, 0
	}
	digits := strings.TrimFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return family, 0
	}
	return family, n
}

// mountingFor infers mounting type and assembly side from the package
// string. Unrecognized packages are assumed surface-mount on top.
func mountingFor(pkg string) (mounting, side string) {
	if search.ClassifyPackage(pkg) == search.FamilyThroughHole {
		return "through_hole", "top"
	}
	return "smt", "top"
}

func assemblyNotes(msl int) string {
	switch {
	case msl >= 5:
		return mslStrictNote
	case msl >= 3:
		return mslBakeNote
	}
	return ""
}

// designatorCounters hands out per-prefix reference indices. Counters
// live inside one BOM generation pass only, so repeated generation over
// an unchanged state yields identical designators.
type designatorCounters map[string]int

func (c designatorCounters) next(prefix string) string {
	c[prefix]++
	return prefix + strconv.Itoa(c[prefix])
}

// nextRange reserves qty consecutive indices and returns a range
// designator ("C2-C5"), or a single designator when qty is 1.
func (c designatorCounters) nextRange(prefix string, qty int) string {
	start := c[prefix] + 1
	c[prefix] += qty
	if qty <= 1 {
		return prefix + strconv.Itoa(start)
	}
	return fmt.Sprintf("%s%d-%s%d", prefix, start, prefix, c[prefix])
}

// passiveGroup accumulates identical external components into one BOM
// line.
type passiveGroup struct {
	spec model.PassiveSpec
	qty  int
}

// BOM assembles the bill of materials from the design state's selected
// parts and external components. Pass the generated netlist to also get
// test points (one per power rail, one for ground, plus a small signal
// allowance); fiducials are always appended.
func (g *Generator) BOM(state *model.DesignState, nets []model.Net, revision string) *model.BOM {
	if revision == "" {
		revision = defaultRevision
	}
	counters := make(designatorCounters)
	var items []model.BOMItem

	// Selected parts in resolution order, intermediaries included.
	for _, block := range state.BlockNames() {
		part, ok := state.Part(block)
		if !ok {
			continue
		}
		items = append(items, g.partLine(counters, block, part))
	}

	// Identical passives collapse into one line with a designator range.
	items = append(items, g.passiveLines(counters, state.ExternalComponents())...)

	items = append(items, fiducialLine(counters))
	if len(nets) > 0 {
		items = append(items, testPointLine(counters, nets))
	}

	bom := &model.BOM{
		Items: items,
		Summary: model.BOMSummary{
			TotalParts: state.PartCount(),
		},
		Metadata: model.BOMMetadata{
			Revision:    revision,
			GeneratedBy: generatedBy,
		},
	}
	for _, it := range bom.Items {
		bom.Summary.TotalCost = roundCents(bom.Summary.TotalCost + it.ExtendedCost)
		bom.Summary.TotalQty += it.Quantity
	}
	return bom
}

func (g *Generator) partLine(counters designatorCounters, block string, part model.PartRecord) model.BOMItem {
	mounting, side := mountingFor(part.Package)
	item := model.BOMItem{
		Designator:   counters.next(DesignatorPrefix(part.Category)),
		Quantity:     1,
		PartID:       part.ID,
		MPN:          part.MPN,
		Manufacturer: part.Manufacturer,
		Description:  fmt.Sprintf("%s (%s)", part.Category, block),
		Footprint:    DeriveFootprint(&part),
		UnitCost:     part.UnitCost(),
		ExtendedCost: roundCents(part.UnitCost()),
		Lifecycle:    part.Lifecycle,
		Availability: part.Availability,
		MountingType: mounting,
		AssemblySide: side,
	}
	if part.Cost != nil {
		item.Currency = part.Cost.Currency
	}
	if part.MSL != nil {
		item.MSL = *part.MSL
		item.AssemblyNotes = assemblyNotes(*part.MSL)
	}
	return item
}

func (g *Generator) passiveLines(counters designatorCounters, specs []model.PassiveSpec) []model.BOMItem {
	var order []string
	groups := make(map[string]*passiveGroup)
	for _, spec := range specs {
		key := strings.ToLower(spec.Kind) + "|" + strings.ToLower(spec.Value) + "|" + strings.ToLower(spec.Package)
		grp, ok := groups[key]
		if !ok {
			grp = &passiveGroup{spec: spec}
			groups[key] = grp
			order = append(order, key)
		}
		qty := spec.Qty
		if qty < 1 {
			qty = 1
		}
		grp.qty += qty
	}

	items := make([]model.BOMItem, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		mounting, side := mountingFor(grp.spec.Package)
		items = append(items, model.BOMItem{
			Designator:    counters.nextRange(PassivePrefix(grp.spec.Kind), grp.qty),
			Quantity:      grp.qty,
			Description:   strings.TrimSpace(grp.spec.Value + " " + grp.spec.Kind),
			Footprint:     footprintForPackage(grp.spec.Package),
			MountingType:  mounting,
			AssemblySide:  side,
			AssemblyNotes: grp.spec.Notes,
		})
	}
	return items
}

func fiducialLine(counters designatorCounters) model.BOMItem {
	return model.BOMItem{
		Designator:    counters.nextRange("FID", fiducialCount),
		Quantity:      fiducialCount,
		Description:   "Fiducial mark",
		MountingType:  "smt",
		AssemblySide:  "top",
		AssemblyNotes: "Bare copper, no paste.",
	}
}

// testPointLine allocates one test point per distinct power rail, one
// for ground, and a fixed allowance for signal debugging.
func testPointLine(counters designatorCounters, nets []model.Net) model.BOMItem {
	count := signalTestPoints
	for _, n := range nets {
		switch n.Class {
		case model.NetClassPower, model.NetClassGround:
			count++
		}
	}
	return model.BOMItem{
		Designator:   counters.nextRange("TP", count),
		Quantity:     count,
		Description:  "Test point",
		MountingType: "smt",
		AssemblySide: "top",
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
