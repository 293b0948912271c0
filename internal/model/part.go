// Package model defines the core data types shared across the resolution
// pipeline: catalog part records, architecture input, design state, nets,
// and BOM documents.
package model

import "strings"

// LifecycleStatus is a part's manufacturer lifecycle classification.
type LifecycleStatus string

const (
	LifecycleActive         LifecycleStatus = "active"
	LifecycleEOL            LifecycleStatus = "eol"
	LifecycleObsolete       LifecycleStatus = "obsolete"
	LifecycleNotRecommended LifecycleStatus = "not_recommended"
	LifecycleLastTimeBuy    LifecycleStatus = "last_time_buy"
)

// ParseLifecycle maps a raw string to a known lifecycle status.
// Unknown values default to active so scoring still works; the second
// return reports whether the value was recognized so callers can log it.
func ParseLifecycle(s string) (LifecycleStatus, bool) {
	switch LifecycleStatus(strings.ToLower(strings.TrimSpace(s))) {
	case LifecycleActive:
		return LifecycleActive, true
	case LifecycleEOL:
		return LifecycleEOL, true
	case LifecycleObsolete:
		return LifecycleObsolete, true
	case LifecycleNotRecommended:
		return LifecycleNotRecommended, true
	case LifecycleLastTimeBuy:
		return LifecycleLastTimeBuy, true
	}
	return LifecycleActive, false
}

// AvailabilityStatus is a part's distributor stock classification.
type AvailabilityStatus string

const (
	AvailabilityInStock    AvailabilityStatus = "in_stock"
	AvailabilityLimited    AvailabilityStatus = "limited"
	AvailabilityBackorder  AvailabilityStatus = "backorder"
	AvailabilityOutOfStock AvailabilityStatus = "out_of_stock"
)

// VoltageRange describes a supply or output voltage window in volts.
// All fields are optional; absent bounds are treated as open.
type VoltageRange struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Nominal *float64 `json:"nominal,omitempty"`
}

// Contains reports whether v lies within [Min, Max], treating absent
// bounds as unbounded.
func (r VoltageRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Overlaps reports whether two ranges share any voltage. When one side
// declares only a nominal value, that value is checked against the other
// side's bounds.
func (r VoltageRange) Overlaps(o VoltageRange) bool {
	if r.Nominal != nil && r.Min == nil && r.Max == nil {
		return o.Contains(*r.Nominal)
	}
	if o.Nominal != nil && o.Min == nil && o.Max == nil {
		return r.Contains(*o.Nominal)
	}
	if r.Min != nil && o.Max != nil && *r.Min > *o.Max {
		return false
	}
	if r.Max != nil && o.Min != nil && *r.Max < *o.Min {
		return false
	}
	return true
}

// Defined reports whether the range carries any voltage information at all.
func (r VoltageRange) Defined() bool {
	return r.Min != nil || r.Max != nil || r.Nominal != nil
}

// CurrentSpec describes a part's current capacity or draw in amps.
type CurrentSpec struct {
	TypicalA *float64 `json:"typical_a,omitempty"`
	MaxA     *float64 `json:"max_a,omitempty"`
}

// TempRange is an operating temperature window in degrees Celsius.
type TempRange struct {
	MinC *float64 `json:"min_c,omitempty"`
	MaxC *float64 `json:"max_c,omitempty"`
}

// Overlaps reports whether two temperature windows intersect. Absent
// bounds are open, so a part with no declared range overlaps everything.
func (t TempRange) Overlaps(o TempRange) bool {
	if t.MinC != nil && o.MaxC != nil && *t.MinC > *o.MaxC {
		return false
	}
	if t.MaxC != nil && o.MinC != nil && *t.MaxC < *o.MinC {
		return false
	}
	return true
}

// CostEstimate is a distributor price point at a given order quantity.
type CostEstimate struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Quantity int     `json:"quantity"`
}

// PassiveSpec describes a recommended external passive or protection
// component (decoupling cap, pull-up, TVS diode).
type PassiveSpec struct {
	Kind    string `json:"kind"`  // capacitor, resistor, inductor, diode, tvs, fuse, crystal
	Value   string `json:"value"` // e.g. "100nF", "4.7k"
	Package string `json:"package,omitempty"`
	Qty     int    `json:"qty"`
	Notes   string `json:"notes,omitempty"`
}

// PartRecord is an immutable catalog entry. Records are constructed once
// at catalog load time through a validated path and never mutated; the
// pipeline only copies them.
type PartRecord struct {
	ID           string `json:"id"`
	MPN          string `json:"mpn"`
	Manufacturer string `json:"manufacturer"`
	// Category is a hierarchical string tag ("regulator_ldo" is a kind
	// of "regulator"); matching is by exact key with substring fallback.
	Category  string `json:"category"`
	Package   string `json:"package,omitempty"`
	Footprint string `json:"footprint,omitempty"` // explicit override; usually derived from Package

	SupplyVoltage VoltageRange `json:"supply_voltage"`
	// OutputVoltage is set for parts that source power downstream
	// (regulators, power modules).
	OutputVoltage *float64    `json:"output_voltage,omitempty"`
	Current       CurrentSpec `json:"current"`

	Interfaces  []string `json:"interfaces,omitempty"`
	LogicLevelV *float64 `json:"logic_level_v,omitempty"`

	Lifecycle    LifecycleStatus    `json:"lifecycle_status"`
	Availability AvailabilityStatus `json:"availability"`
	Cost         *CostEstimate      `json:"cost,omitempty"`

	ThermalResistanceCW *float64  `json:"thermal_resistance_c_w,omitempty"`
	OperatingTemp       TempRange `json:"operating_temp"`
	Efficiency          *float64  `json:"efficiency,omitempty"` // 0..1, converters only
	MSL                 *int      `json:"msl,omitempty"`

	// Pins lists the part's declared pin names; net classification is by
	// name pattern.
	Pins []string `json:"pins,omitempty"`

	RecommendedExternal []PassiveSpec `json:"recommended_external,omitempty"`
}

// NominalV returns the nominal supply voltage, or false when undeclared.
func (p *PartRecord) NominalV() (float64, bool) {
	if p.SupplyVoltage.Nominal != nil {
		return *p.SupplyVoltage.Nominal, true
	}
	return 0, false
}

// SourceVoltage returns the voltage this part presents to downstream
// loads: its output voltage when it is a converter, otherwise its
// nominal supply rail.
func (p *PartRecord) SourceVoltage() (float64, bool) {
	if p.OutputVoltage != nil {
		return *p.OutputVoltage, true
	}
	return p.NominalV()
}

// MaxCurrentA returns the declared max current in amps, or 0 when absent.
func (p *PartRecord) MaxCurrentA() float64 {
	if p.Current.MaxA != nil {
		return *p.Current.MaxA
	}
	return 0
}

// TypicalCurrentA returns the typical current in amps, falling back to
// max, or 0 when neither is declared.
func (p *PartRecord) TypicalCurrentA() float64 {
	if p.Current.TypicalA != nil {
		return *p.Current.TypicalA
	}
	return p.MaxCurrentA()
}

// UnitCost returns the unit price, or 0 when no cost estimate exists.
func (p *PartRecord) UnitCost() float64 {
	if p.Cost != nil {
		return p.Cost.Value
	}
	return 0
}

// EstimatedPowerW is nominal voltage times typical draw, used only for
// coarse scoring; returns 0 when either factor is unknown.
func (p *PartRecord) EstimatedPowerW() float64 {
	v, ok := p.NominalV()
	if !ok {
		return 0
	}
	return v * p.TypicalCurrentA()
}

// HasInterface reports whether the part declares the given interface,
// case-insensitively.
func (p *PartRecord) HasInterface(name string) bool {
	for _, i := range p.Interfaces {
		if strings.EqualFold(i, name) {
			return true
		}
	}
	return false
}

// InterfaceIntersection returns the interfaces two parts share.
func InterfaceIntersection(a, b []string) []string {
	var shared []string
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				shared = append(shared, strings.ToLower(x))
				break
			}
		}
	}
	return shared
}
