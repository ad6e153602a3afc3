package types

// Point is a pixel-space coordinate in a camera frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Status is the daemon status snapshot.
// This struct is shared between the daemon and client packages.
type Status struct {
	Monitoring           bool          `json:"monitoring"`
	BatteryLevel         int           `json:"battery_level"`
	BatteryStatus        BatteryStatus `json:"battery_status"`
	ChargingSpotFound    bool          `json:"charging_spot_found"`
	ChargingSpotPosition *Point        `json:"charging_spot_position,omitempty"`
	WarningThreshold     int           `json:"warning_threshold"`
	CriticalThreshold    int           `json:"critical_threshold"`
	ChargingThreshold    int           `json:"charging_threshold"`
}
