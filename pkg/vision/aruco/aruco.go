// Package aruco implements marker detection with OpenCV ArUco dictionaries.
package aruco

import (
	pkgerrors "github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/eaglewings/perch/pkg/types"
	"github.com/eaglewings/perch/pkg/vision"
)

var _ vision.Detector = &Detector{}

// Detector detects ArUco markers in encoded camera frames.
type Detector struct {
	detector   gocv.ArucoDetector
	markerSize float64
}

// New creates a detector for the given predefined dictionary id (see the
// gocv.ArucoDict* constants). markerSize is the physical marker edge
// length in meters; it is carried for pose estimation and unused by
// plain detection.
func New(dictionaryID int, markerSize float64) *Detector {
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDictionaryCode(dictionaryID))
	params := gocv.NewArucoDetectorParameters()

	return &Detector{
		detector:   gocv.NewArucoDetectorWithParams(dict, params),
		markerSize: markerSize,
	}
}

// Detect decodes the frame, converts it to grayscale and returns one
// Detection per found marker, centered on the mean of its corners.
func (d *Detector) Detect(frame []byte) ([]vision.Detection, error) {
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode frame")
	}
	defer img.Close()

	if img.Empty() {
		return nil, pkgerrors.New("decoded frame is empty")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	corners, ids, _ := d.detector.DetectMarkers(gray)

	detections := make([]vision.Detection, 0, len(ids))
	for i, id := range ids {
		if i >= len(corners) || len(corners[i]) == 0 {
			continue
		}

		var cx, cy float64
		for _, p := range corners[i] {
			cx += float64(p.X)
			cy += float64(p.Y)
		}
		n := float64(len(corners[i]))

		detections = append(detections, vision.Detection{
			ID:     id,
			Center: types.Point{X: cx / n, Y: cy / n},
		})
	}

	return detections, nil
}

// MarkerSize returns the configured physical marker edge length in meters.
func (d *Detector) MarkerSize() float64 {
	return d.markerSize
}

// Close releases the underlying OpenCV detector.
func (d *Detector) Close() error {
	return d.detector.Close()
}
