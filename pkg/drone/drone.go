// Package drone defines the flight command surface perch needs from a
// vehicle. The interfaces are intentionally small so consumers depend only
// on the capabilities they actually use: the battery monitor needs only
// Commander, the search protocol additionally needs a FrameSource.
package drone

// Frame is an encoded camera image. JPEG unless a driver documents
// otherwise.
type Frame []byte

// Commander is the flight command interface. Every call may fail with a
// transport-level error; callers route movement commands through the
// retry executor.
type Commander interface {
	Connect() error
	BatteryPercentage() (int, error)
	TakeOff() error
	Land() error
	// MoveForward moves the vehicle forward by the given distance in cm.
	MoveForward(distanceCm int) error
	// RotateClockwise rotates the vehicle clockwise by the given degrees.
	RotateClockwise(degrees int) error
	StreamOn() error
	StreamOff() error
	// End lands if necessary and releases the link. Safe to call twice.
	End() error
}

// FrameSource yields the most recent camera frame, if any. LatestFrame
// must not block; "no frame yet" is reported through ok=false.
type FrameSource interface {
	LatestFrame() (Frame, bool)
}
