package main

// Sample is one accelerometer reading in m/s².
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Impact is the squared magnitude across the X and Z axes.
// Y is ignored: with the board mounted along the blade it only sees gravity and roll.
func (s Sample) Impact() float64 {
	return s.X*s.X + s.Z*s.Z
}

// Thresholds are squared accelerations compared directly against Impact.
type Thresholds struct {
	Hit   float64
	Swing float64
}

// Gesture is the classifier verdict for one sample.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureSwing
	GestureHit
)

func (g Gesture) String() string {
	switch g {
	case GestureSwing:
		return "swing"
	case GestureHit:
		return "hit"
	default:
		return "none"
	}
}

// MarshalText encodes the gesture by name for JSON payloads.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// Classify maps an impact to a gesture. A hit is detected in every mode;
// a swing only from IDLE so an ongoing swing or hit animation is never re-triggered.
func Classify(impact float64, mode Mode, th Thresholds) Gesture {
	switch {
	case impact > th.Hit:
		return GestureHit
	case mode == ModeIdle && impact > th.Swing:
		return GestureSwing
	default:
		return GestureNone
	}
}
