package motiondetection

import (
	"sync"
	"time"
)

// Clock abstracts wall clock time for warmup tracking.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MotionState is the decision state of one camera session.
type MotionState struct {
	Active      bool
	Window      *DetectionWindow
	WarmupStart *time.Time // set on the first readiness check
	Ready       bool       // once true, stays true
}

// Thresholds form the hysteresis band of the decision. Either ordering is
// accepted. Activation is checked first, so with deactivation above
// activation any ratio above Activation activates.
type Thresholds struct {
	Activation   float64
	Deactivation float64
}

// Decide applies the band to ratio: above Activation is active, below
// Deactivation is inactive, anything else keeps previous.
func (t Thresholds) Decide(ratio float64, previous bool) bool {
	if ratio > t.Activation {
		return true
	}
	if ratio < t.Deactivation {
		return false
	}
	return previous
}

// StateMachine turns instantaneous detections into a debounced motion
// decision. It is not safe for concurrent use.
type StateMachine struct {
	state  MotionState
	warmup time.Duration
	clock  Clock
}

func NewStateMachine(memorySize int, warmup time.Duration, clock Clock) *StateMachine {
	if clock == nil {
		clock = RealClock{}
	}
	return &StateMachine{
		state:  MotionState{Window: NewDetectionWindow(memorySize)},
		warmup: warmup,
		clock:  clock,
	}
}

// Ready reports whether warmup is over. The warmup timer starts on the first
// call. A non-positive warmup is ready immediately.
func (m *StateMachine) Ready() bool {
	if m.state.Ready {
		return true
	}

	now := m.clock.Now()
	if m.state.WarmupStart == nil {
		m.state.WarmupStart = &now
	}

	if m.warmup <= 0 || now.Sub(*m.state.WarmupStart) > m.warmup {
		m.state.Ready = true
	}
	return m.state.Ready
}

// Update pushes hit onto the window and re-evaluates the decision. It returns
// the decision and whether it differs from the previous one.
func (m *StateMachine) Update(hit bool, t Thresholds) (active bool, changed bool) {
	previous := m.state.Active

	m.state.Window.Push(hit)
	ratio := m.state.Window.Ratio()

	m.state.Active = t.Decide(ratio, previous)

	return m.state.Active, m.state.Active != previous
}

func (m *StateMachine) Active() bool   { return m.state.Active }
func (m *StateMachine) Ratio() float64 { return m.state.Window.Ratio() }

// State returns a copy of the current state. The window is shared.
func (m *StateMachine) State() MotionState {
	return m.state
}
