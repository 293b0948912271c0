package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/kairo-ai/kairo/internal/model"
)

// Constraints narrows a catalog search. Nil fields are unconstrained.
type Constraints struct {
	// Voltage must overlap the part's supply range; a nominal-only value
	// must lie within the part's [min, max].
	Voltage *model.VoltageRange
	// Interfaces requires a non-empty intersection with the part's set.
	Interfaces []string
	// Temp must overlap the part's operating range.
	Temp *model.TempRange
	// Availability and Lifecycle are exact matches when set.
	Availability *model.AvailabilityStatus
	Lifecycle    *model.LifecycleStatus
	// MinCurrentA excludes parts whose declared max current is below the
	// value; parts with no declared capacity are kept.
	MinCurrentA *float64
	// MaxUnitCost excludes parts with a known unit cost above the value.
	MaxUnitCost *float64
}

// FromBlock converts upstream per-block constraints into search constraints.
func FromBlock(bc model.BlockConstraint, requiredInterfaces []string) Constraints {
	return Constraints{
		Voltage:      bc.Voltage,
		Interfaces:   requiredInterfaces,
		Temp:         bc.Temp,
		Availability: bc.Availability,
		Lifecycle:    bc.Lifecycle,
		MinCurrentA:  bc.MinCurrentA,
		MaxUnitCost:  bc.MaxUnitCost,
	}
}

// Key returns a canonical string representation: equal constraints always
// produce equal keys regardless of interface ordering.
func (c Constraints) Key() string {
	var b strings.Builder
	writeF := func(f *float64) {
		if f == nil {
			b.WriteString("-;")
			return
		}
		fmt.Fprintf(&b, "%g;", *f)
	}
	if c.Voltage != nil {
		writeF(c.Voltage.Min)
		writeF(c.Voltage.Max)
		writeF(c.Voltage.Nominal)
	} else {
		b.WriteString("v-;")
	}
	ifaces := make([]string, len(c.Interfaces))
	for i, s := range c.Interfaces {
		ifaces[i] = strings.ToLower(s)
	}
	sort.Strings(ifaces)
	b.WriteString(strings.Join(ifaces, ","))
	b.WriteString(";")
	if c.Temp != nil {
		writeF(c.Temp.MinC)
		writeF(c.Temp.MaxC)
	} else {
		b.WriteString("t-;")
	}
	if c.Availability != nil {
		b.WriteString(string(*c.Availability))
	}
	b.WriteString(";")
	if c.Lifecycle != nil {
		b.WriteString(string(*c.Lifecycle))
	}
	b.WriteString(";")
	writeF(c.MinCurrentA)
	writeF(c.MaxUnitCost)
	return b.String()
}

// CacheKey builds a stable cache key for a (category, constraints) query
// under an operation-name prefix, so each caller gets an independent key
// space over the shared cache.
func CacheKey(op, category string, c Constraints) string {
	sum := sha256.Sum256([]byte(category + "|" + c.Key()))
	return op + ":" + hex.EncodeToString(sum[:8])
}

// Matches applies every constraint filter to a part, short-circuiting on
// the first failure.
func (c Constraints) Matches(p *model.PartRecord) bool {
	if c.Voltage != nil && c.Voltage.Defined() {
		if !c.Voltage.Overlaps(p.SupplyVoltage) {
			return false
		}
	}
	if len(c.Interfaces) > 0 {
		if len(model.InterfaceIntersection(c.Interfaces, p.Interfaces)) == 0 {
			return false
		}
	}
	if c.Temp != nil {
		if !c.Temp.Overlaps(p.OperatingTemp) {
			return false
		}
	}
	if c.Availability != nil && p.Availability != *c.Availability {
		return false
	}
	if c.Lifecycle != nil && p.Lifecycle != *c.Lifecycle {
		return false
	}
	if c.MinCurrentA != nil && p.Current.MaxA != nil && *p.Current.MaxA < *c.MinCurrentA {
		return false
	}
	if c.MaxUnitCost != nil && p.Cost != nil && p.Cost.Value > *c.MaxUnitCost {
		return false
	}
	return true
}
