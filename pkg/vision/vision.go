// Package vision defines the marker detection capability used to locate
// charging spots in camera frames.
package vision

import "github.com/eaglewings/perch/pkg/types"

// Detection is a single fiducial marker found in a frame.
type Detection struct {
	// ID is the marker identifier within its dictionary.
	ID int
	// Center is the pixel-space centroid of the marker corners.
	Center types.Point
}

// Detector finds fiducial markers in an encoded camera frame. Detectors
// are stateless per call and safe for sequential reuse.
type Detector interface {
	Detect(frame []byte) ([]Detection, error)
}
