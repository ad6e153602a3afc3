package sim

import (
	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/vision"
)

var _ vision.Detector = &Detector{}

// Detector is the marker detector paired with the simulated drone. It
// ignores the frame payload and reports the marker whenever it is inside
// the simulated field of view, with the centroid shifted horizontally in
// proportion to the angular offset.
type Detector struct {
	drone *Drone
}

func NewDetector(d *Drone) *Detector {
	return &Detector{drone: d}
}

func (det *Detector) Detect(_ []byte) ([]vision.Detection, error) {
	offset, visible := det.drone.markerOffset()
	if !visible {
		return nil, nil
	}

	// Map [-fov/2, fov/2] onto the frame width.
	x := frameWidth/2 + float64(offset)/(fovDeg/2)*(frameWidth/2)

	return []vision.Detection{{
		ID:     det.drone.markerID,
		Center: types.Point{X: x, Y: frameHeight / 2},
	}}, nil
}
