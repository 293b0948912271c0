package model

// NetClass is the electrical role of a net, derived from its name.
type NetClass string

const (
	NetClassPower        NetClass = "power"
	NetClassGround       NetClass = "ground"
	NetClassSignal       NetClass = "signal"
	NetClassClock        NetClass = "clock"
	NetClassDifferential NetClass = "differential"
)

// PinRef identifies one pin of one placed part.
type PinRef struct {
	PartID string `json:"part_id"`
	Pin    string `json:"pin"`
}

// Net is a named group of electrically connected pins with advisory
// engineering annotations. Annotations are derived, never verified
// against physics.
type Net struct {
	Name  string   `json:"net_name"`
	Class NetClass `json:"net_class"`
	Pins  []PinRef `json:"pins"`

	CurrentEstimateA *float64 `json:"current_estimate_amps,omitempty"`
	TraceWidthMil    *int     `json:"recommended_trace_width_mil,omitempty"`
	ImpedanceOhms    *float64 `json:"required_impedance_ohms,omitempty"`
}
