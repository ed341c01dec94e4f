package detection

type Steering string

const (
	SteerStraight Steering = "straight"
	SteerLeft     Steering = "left"
	SteerRight    Steering = "right"
	SteerBrake    Steering = "brake"
)

type Object struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// State is the simulated lane pilot output for one playback instant.
type State struct {
	Position        float64  `json:"position"`
	Steering        Steering `json:"steering"`
	PotholeDetected bool     `json:"pothole_detected"`
	PotholeDistance *float64 `json:"pothole_distance,omitempty"`
	Speed           int      `json:"speed"`
	SpeedWarning    bool     `json:"speed_warning"`
	Objects         []Object `json:"objects"`
}

// SafetyStatus is the summary shown under the player.
func (s State) SafetyStatus() string {
	if s.PotholeDetected {
		return "WARNING: HAZARD DETECTED"
	}
	return "SAFE"
}
