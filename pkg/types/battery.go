package types

// BatteryStatus is the severity bucket derived from the last battery sample.
type BatteryStatus string

const (
	BatteryNormal   BatteryStatus = "normal"
	BatteryWarning  BatteryStatus = "warning"
	BatteryCritical BatteryStatus = "critical"
	// BatteryCharging is only entered through the external docked signal,
	// never from threshold classification.
	BatteryCharging BatteryStatus = "charging"
)

// BatteryInfo is the detailed battery view served by the daemon. IsLow and
// IsCritical are evaluated against the thresholds active at request time.
type BatteryInfo struct {
	CurrentLevel      int           `json:"current_level"`
	Status            BatteryStatus `json:"status"`
	WarningThreshold  int           `json:"warning_threshold"`
	CriticalThreshold int           `json:"critical_threshold"`
	ChargingThreshold int           `json:"charging_threshold"`
	IsLow             bool          `json:"is_low"`
	IsCritical        bool          `json:"is_critical"`
}
