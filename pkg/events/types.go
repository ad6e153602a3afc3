package events

import "encoding/json"

// Event name constants.
const (
	BatteryTransition = "battery.transition"
	BatteryCritical   = "battery.critical"
	SearchStarted     = "search.started"
	SearchMarkerFound = "search.marker_found"
	SearchFinished    = "search.finished"
)

// Event is a generic event published by the daemon and streamed to
// websocket subscribers.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// BatteryTransitionEvent is the typed payload for battery.transition and
// battery.critical.
type BatteryTransitionEvent struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Level int    `json:"level"`
	Ts    int64  `json:"ts"`
}

// SearchEvent is the typed payload for the search.* events.
type SearchEvent struct {
	Session  string `json:"session"`
	MarkerID int    `json:"marker_id,omitempty"`
	Found    bool   `json:"found"`
	Ts       int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified type T.
// An empty payload decodes to the zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
