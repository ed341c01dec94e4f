package detection

import (
	"fmt"
	"math"
)

const (
	CycleSeconds   = 10.0
	SpeedLimitKmh  = 60
	MaxTimeline    = 10000
	minPotholeDist = 0.5
)

var (
	carObject  = Object{Label: "car", Confidence: 0.92}
	laneObject = Object{Label: "lane", Confidence: 0.88}
)

// CyclePosition maps a playback position onto [0, 1) within the repeating
// 10 second window. Negative and non-finite positions count as 0.
func CyclePosition(position float64) float64 {
	position = normalize(position)
	return math.Mod(position, CycleSeconds) / CycleSeconds
}

// Project computes the detection state for a playback position. It holds no
// state and may be called for any position in any order.
func Project(position float64) State {
	position = normalize(position)

	state := Cycle(position)
	state.Speed = speedAt(position)
	state.SpeedWarning = state.Speed > SpeedLimitKmh

	return state
}

// Cycle returns the fields of Project that depend only on the cycle
// position: steering, pothole fields and objects. Speed is left zero.
func Cycle(position float64) State {
	position = normalize(position)
	c := CyclePosition(position)

	state := State{
		Position: position,
		Steering: steeringAt(c),
		Objects:  []Object{carObject, laneObject},
	}

	if c >= 0.7 && c < 0.8 {
		state.PotholeDetected = true
		d := math.Max(minPotholeDist, round1(10-(c-0.7)*33.3))
		state.PotholeDistance = &d
	}

	if c > 0.65 && c < 0.85 {
		conf := math.Min(0.99, 0.7+(c-0.65)*1.5)
		state.Objects = append(state.Objects, Object{Label: "pothole", Confidence: conf})
	}

	return state
}

func steeringAt(c float64) Steering {
	switch {
	case c < 0.3:
		return SteerStraight
	case c < 0.5:
		return SteerLeft
	case c < 0.7:
		return SteerRight
	case c < 0.8:
		return SteerBrake
	default:
		return SteerStraight
	}
}

func speedAt(position float64) int {
	return int(math.Round(40 + 20*math.Sin(0.5*position) + 20*math.Sin(0.2*position)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func normalize(position float64) float64 {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return 0
	}
	return position
}

// Timeline samples Project from `from` to `to` inclusive every `step` seconds.
func Timeline(from, to, step float64) ([]State, error) {
	for _, v := range []float64{from, to, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("timeline bounds must be finite, got %v", v)
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	if to < from {
		return nil, fmt.Errorf("range end %v before start %v", to, from)
	}

	n := int(math.Floor((to-from)/step+1e-9)) + 1
	if n > MaxTimeline {
		return nil, fmt.Errorf("timeline of %d samples exceeds limit of %d", n, MaxTimeline)
	}
	states := make([]State, 0, n)
	for i := 0; i < n; i++ {
		states = append(states, Project(from+float64(i)*step))
	}
	return states, nil
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	seconds = normalize(seconds)
	minutes := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
