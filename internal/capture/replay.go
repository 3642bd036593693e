package capture

import (
	"fmt"
	"time"
)

// FrameHandler receives one replayed TripFrame.
type FrameHandler func(frame TripFrame)

// TripReplayer plays a saved TripSession's frames back at their
// original pacing (scaled by Speed), for offline inspection via the
// `automon replay` CLI command.
type TripReplayer struct {
	Session *TripSession
	Speed   float64 // multiplier; 1.0 = real-time
}

// NewTripReplayer returns a replayer at real-time speed.
func NewTripReplayer(session *TripSession) *TripReplayer {
	return &TripReplayer{Session: session, Speed: 1.0}
}

// SetSpeed sets the replay speed multiplier; non-positive values fall
// back to real-time.
func (r *TripReplayer) SetSpeed(speed float64) {
	if speed <= 0 {
		r.Speed = 1.0
		return
	}
	r.Speed = speed
}

// Play invokes handler for each frame in order, sleeping between
// frames to reproduce their recorded inter-arrival spacing scaled by
// Speed.
func (r *TripReplayer) Play(handler FrameHandler) error {
	if len(r.Session.Frames) == 0 {
		return fmt.Errorf("capture: no frames to replay")
	}

	start := time.Now()
	sessionStart := r.Session.Frames[0].Timestamp

	for _, frame := range r.Session.Frames {
		targetDelay := frame.Timestamp.Sub(sessionStart)
		adjustedDelay := time.Duration(float64(targetDelay) / r.Speed)
		if actual := time.Since(start); actual < adjustedDelay {
			time.Sleep(adjustedDelay - actual)
		}
		handler(frame)
	}
	return nil
}
