package output

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairo-ai/kairo/internal/model"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func testGenerator() *Generator {
	return NewGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// buildState assembles the canonical three-part design: a 3.3V MCU
// anchor, a 5V sensor child fed through a buck converter intermediary.
func buildState(t *testing.T) *model.DesignState {
	t.Helper()
	state := model.NewDesignState()

	mcu := model.PartRecord{
		ID: "mcu-1", MPN: "ESP32-S3", Manufacturer: "Espressif",
		Category: "mcu_wifi", Package: "QFN-56",
		SupplyVoltage: model.VoltageRange{Min: f(3.0), Max: f(3.6), Nominal: f(3.3)},
		Current:       model.CurrentSpec{MaxA: f(0.5)},
		Lifecycle:     model.LifecycleActive,
		Availability:  model.AvailabilityInStock,
		Cost:          &model.CostEstimate{Value: 2.80, Currency: "USD", Quantity: 1},
		MSL:           i(3),
		Pins:          []string{"VDD", "GND", "SDA", "SCL", "USB_DP", "USB_DM", "XTAL_IN"},
	}
	sensor := model.PartRecord{
		ID: "sensor-1", MPN: "BME280", Manufacturer: "Bosch",
		Category: "sensor_environment", Package: "LGA-8",
		SupplyVoltage: model.VoltageRange{Min: f(4.5), Max: f(5.5), Nominal: f(5.0)},
		Current:       model.CurrentSpec{MaxA: f(0.01)},
		Lifecycle:     model.LifecycleActive,
		Availability:  model.AvailabilityInStock,
		Cost:          &model.CostEstimate{Value: 3.10, Currency: "USD", Quantity: 1},
		Pins:          []string{"VDD", "GND", "SDA", "SCL"},
	}
	boost := model.PartRecord{
		ID: "boost-1", MPN: "TPS61023", Manufacturer: "TI",
		Category: "regulator_boost", Package: "SOT-23-6",
		SupplyVoltage: model.VoltageRange{Min: f(0.5), Max: f(5.5)},
		OutputVoltage: f(5.0),
		Current:       model.CurrentSpec{MaxA: f(1.0)},
		Lifecycle:     model.LifecycleActive,
		Availability:  model.AvailabilityInStock,
		Cost:          &model.CostEstimate{Value: 0.60, Currency: "USD", Quantity: 1},
		Pins:          []string{"VIN", "VOUT", "GND"},
	}

	require.NoError(t, state.AddPart("anchor", mcu))
	require.NoError(t, state.AddPart("sensor", sensor))
	require.NoError(t, state.AddIntermediary("sensor", model.IntermediaryPower, "sensor_power", boost))
	require.NoError(t, state.AddExternalComponents(
		model.PassiveSpec{Kind: "capacitor", Value: "100nF", Package: "0603", Qty: 2},
		model.PassiveSpec{Kind: "capacitor", Value: "100nF", Package: "0603", Qty: 2},
		model.PassiveSpec{Kind: "resistor", Value: "4.7k", Package: "0402", Qty: 2, Notes: "I2C pull-ups"},
	))
	return state
}

func TestClassifyPin(t *testing.T) {
	cases := map[string]model.NetClass{
		"VDD":     model.NetClassPower,
		"VIN":     model.NetClassPower,
		"3V3":     model.NetClassPower,
		"GND":     model.NetClassGround,
		"AGND":    model.NetClassGround,
		"VSS":     model.NetClassGround,
		"SDA":     model.NetClassSignal,
		"MOSI":    model.NetClassSignal,
		"XTAL_IN": model.NetClassClock,
		"SCLK":    model.NetClassClock,
		"USB_DP":  model.NetClassDifferential,
		"USB_DM":  model.NetClassDifferential,
		"GPIO12":  model.NetClassSignal,
	}
	for pin, want := range cases {
		assert.Equal(t, want, ClassifyPin(pin), "pin %s", pin)
	}
}

func TestRailName(t *testing.T) {
	assert.Equal(t, "VCC_3V3", RailName(3.3))
	assert.Equal(t, "VCC_5V0", RailName(5.0))
	assert.Equal(t, "VCC_1V8", RailName(1.8))
	assert.Equal(t, "VCC_12V0", RailName(12.0))
}

func TestTraceWidthMil(t *testing.T) {
	assert.Equal(t, 10, TraceWidthMil(0))
	assert.Equal(t, 10, TraceWidthMil(0.5))
	assert.Equal(t, 20, TraceWidthMil(1.0))
	assert.Equal(t, 40, TraceWidthMil(1.5))
	assert.Equal(t, 60, TraceWidthMil(2.5))
	assert.Equal(t, 100, TraceWidthMil(4.0))
	assert.Equal(t, 100, TraceWidthMil(50.0))
}

func netByName(t *testing.T, nets []model.Net, name string) model.Net {
	t.Helper()
	for _, n := range nets {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("net %q not found in %d nets", name, len(nets))
	return model.Net{}
}

func TestNetlist_RoutesThroughPowerIntermediary(t *testing.T) {
	state := buildState(t)
	nets := testGenerator().Netlist(state)

	// The boost converter's input sits on the MCU's 3.3V rail; its
	// output creates the sensor's 5V rail.
	rail33 := netByName(t, nets, "VCC_3V3")
	assert.Contains(t, rail33.Pins, model.PinRef{PartID: "mcu-1", Pin: "VDD"})
	assert.Contains(t, rail33.Pins, model.PinRef{PartID: "boost-1", Pin: "VIN"})
	assert.NotContains(t, rail33.Pins, model.PinRef{PartID: "sensor-1", Pin: "VDD"})

	rail50 := netByName(t, nets, "VCC_5V0")
	assert.Contains(t, rail50.Pins, model.PinRef{PartID: "boost-1", Pin: "VOUT"})
	assert.Contains(t, rail50.Pins, model.PinRef{PartID: "sensor-1", Pin: "VDD"})

	gnd := netByName(t, nets, "GND")
	assert.Equal(t, model.NetClassGround, gnd.Class)
	assert.Len(t, gnd.Pins, 3)
}

func TestNetlist_SharedSignalNets(t *testing.T) {
	state := buildState(t)
	nets := testGenerator().Netlist(state)

	sda := netByName(t, nets, "SDA")
	assert.Equal(t, model.NetClassSignal, sda.Class)
	assert.Len(t, sda.Pins, 2) // mcu and sensor share the bus
	assert.Nil(t, sda.ImpedanceOhms)
}

func TestNetlist_Annotations(t *testing.T) {
	state := buildState(t)
	nets := testGenerator().Netlist(state)

	// 3.3V rail draw: mcu 0.5A + boost input 1.0A.
	rail33 := netByName(t, nets, "VCC_3V3")
	require.NotNil(t, rail33.CurrentEstimateA)
	assert.InDelta(t, 1.5, *rail33.CurrentEstimateA, 1e-9)
	require.NotNil(t, rail33.TraceWidthMil)
	assert.Equal(t, 40, *rail33.TraceWidthMil)

	// 5V rail: only the sensor draws, the boost VOUT pin supplies.
	rail50 := netByName(t, nets, "VCC_5V0")
	require.NotNil(t, rail50.CurrentEstimateA)
	assert.InDelta(t, 0.01, *rail50.CurrentEstimateA, 1e-9)
	assert.Equal(t, 10, *rail50.TraceWidthMil)

	usb := netByName(t, nets, "USB_DP")
	assert.Equal(t, model.NetClassDifferential, usb.Class)
	require.NotNil(t, usb.ImpedanceOhms)
	assert.Equal(t, 100.0, *usb.ImpedanceOhms)

	xtal := netByName(t, nets, "XTAL_IN")
	assert.Equal(t, model.NetClassClock, xtal.Class)
	require.NotNil(t, xtal.ImpedanceOhms)
	assert.Equal(t, 50.0, *xtal.ImpedanceOhms)
}

func TestNetlist_NoDanglingReferences(t *testing.T) {
	state := buildState(t)
	nets := testGenerator().Netlist(state)

	known := make(map[string]bool)
	for _, block := range state.BlockNames() {
		p, ok := state.Part(block)
		require.True(t, ok)
		known[p.ID] = true
	}
	for _, n := range nets {
		require.NotEmpty(t, n.Pins, "net %s", n.Name)
		for _, ref := range n.Pins {
			assert.True(t, known[ref.PartID], "net %s references unknown part %s", n.Name, ref.PartID)
		}
	}
}

func TestBOM_DesignatorsAndGrouping(t *testing.T) {
	state := buildState(t)
	gen := testGenerator()
	nets := gen.Netlist(state)
	bom := gen.BOM(state, nets, "B")

	require.GreaterOrEqual(t, len(bom.Items), 6)

	// Parts in resolution order: mcu, sensor, boost (intermediary is
	// appended when inserted).
	assert.Equal(t, "U1", bom.Items[0].Designator)
	assert.Equal(t, "mcu-1", bom.Items[0].PartID)
	assert.Equal(t, "U2", bom.Items[1].Designator)
	assert.Equal(t, "sensor-1", bom.Items[1].PartID)
	assert.Equal(t, "U3", bom.Items[2].Designator)
	assert.Equal(t, "boost-1", bom.Items[2].PartID)

	// The two identical 100nF lines collapse into one designator range.
	caps := bom.Items[3]
	assert.Equal(t, "C1-C4", caps.Designator)
	assert.Equal(t, 4, caps.Quantity)
	assert.Equal(t, "CHIP-0603", caps.Footprint)

	pulls := bom.Items[4]
	assert.Equal(t, "R1-R2", pulls.Designator)
	assert.Equal(t, 2, pulls.Quantity)
	assert.Equal(t, "I2C pull-ups", pulls.AssemblyNotes)

	assert.Equal(t, "B", bom.Metadata.Revision)
	assert.Equal(t, "kairo", bom.Metadata.GeneratedBy)
}

func TestBOM_MSLNotesAndMounting(t *testing.T) {
	state := buildState(t)
	bom := testGenerator().BOM(state, nil, "")

	mcu := bom.Items[0]
	assert.Equal(t, 3, mcu.MSL)
	assert.Equal(t, mslBakeNote, mcu.AssemblyNotes)
	assert.Equal(t, "smt", mcu.MountingType)
	assert.Equal(t, "QFN-56N", mcu.Footprint)
}

func TestBOM_CostRollup(t *testing.T) {
	state := buildState(t)
	bom := testGenerator().BOM(state, nil, "")

	want := 0.0
	for _, it := range bom.Items {
		want += it.UnitCost * float64(it.Quantity)
	}
	assert.InDelta(t, want, bom.Summary.TotalCost, 0.005)
	assert.InDelta(t, 2.80+3.10+0.60, bom.Summary.TotalCost, 0.005)
	assert.Equal(t, 3, bom.Summary.TotalParts)
}

func TestBOM_FiducialsAlwaysTestPointsOnlyWithNetlist(t *testing.T) {
	state := buildState(t)
	gen := testGenerator()

	withoutNets := gen.BOM(state, nil, "")
	last := withoutNets.Items[len(withoutNets.Items)-1]
	assert.Equal(t, "FID1-FID3", last.Designator)

	nets := gen.Netlist(state)
	withNets := gen.BOM(state, nets, "")
	last = withNets.Items[len(withNets.Items)-1]
	// Rails VCC_3V3 + VCC_5V0 + GND + two signal allowance points.
	assert.Equal(t, "TP1-TP5", last.Designator)
	assert.Equal(t, 5, last.Quantity)
}

func TestOutputs_Idempotent(t *testing.T) {
	state := buildState(t)
	gen := testGenerator()

	nets1 := gen.Netlist(state)
	nets2 := gen.Netlist(state)
	assert.Equal(t, nets1, nets2)

	bom1 := gen.BOM(state, nets1, "A")
	bom2 := gen.BOM(state, nets2, "A")
	assert.Equal(t, bom1, bom2)
}

func TestDeriveFootprint(t *testing.T) {
	assert.Equal(t, "SOIC-8N", footprintForPackage("SOIC-8"))
	assert.Equal(t, "QFN-56N", footprintForPackage("QFN-56"))
	assert.Equal(t, "CHIP-0402", footprintForPackage("0402"))
	assert.Equal(t, "SOT-23-6", footprintForPackage("SOT-23-6"))
	assert.Equal(t, "LGA-8", footprintForPackage("LGA-8"))

	explicit := &model.PartRecord{Footprint: "MYLIB:ESP32", Package: "QFN-56"}
	assert.Equal(t, "MYLIB:ESP32", DeriveFootprint(explicit))
}

func TestDesignatorPrefix(t *testing.T) {
	assert.Equal(t, "U", DesignatorPrefix("mcu_wifi"))
	assert.Equal(t, "U", DesignatorPrefix("regulator_buck"))
	assert.Equal(t, "J", DesignatorPrefix("connector_usb_c"))
	assert.Equal(t, "C", PassivePrefix("capacitor"))
	assert.Equal(t, "Y", PassivePrefix("crystal"))
	assert.Equal(t, "D", PassivePrefix("TVS"))
}
