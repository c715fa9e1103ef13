package tracking

import "github.com/edge-hybrid/location-tracker/internal/shared/geo"

// Event is one input to the session state machine.
type Event interface {
	apply(State) (State, bool)
}

// Started begins a fresh session, discarding whatever came before.
type Started struct {
	SessionID string
	At        int64
}

// Stopped freezes an active session.
type Stopped struct {
	At int64
}

// FixReceived appends a fix to an active session.
type FixReceived struct {
	Point geo.Point
}

// Reduce applies ev to prev and returns the next state. The bool is false
// when ev left the state untouched, in which case prev is returned as is.
func Reduce(prev State, ev Event) (State, bool) {
	return ev.apply(prev)
}

func (e Started) apply(State) (State, bool) {
	at := e.At
	return State{
		SessionID:  e.SessionID,
		Points:     []geo.Point{},
		IsTracking: true,
		StartTime:  &at,
	}, true
}

func (e Stopped) apply(prev State) (State, bool) {
	if !prev.IsTracking {
		return prev, false
	}
	at := e.At
	next := prev
	next.IsTracking = false
	next.EndTime = &at
	return next, true
}

func (e FixReceived) apply(prev State) (State, bool) {
	if !prev.IsTracking || !e.Point.Finite() {
		return prev, false
	}

	next := prev
	n := len(prev.Points)
	// the capped slice forces append onto a new array, so earlier snapshots
	// keep their own backing storage
	next.Points = append(prev.Points[:n:n], e.Point)
	if n > 0 {
		next.Distance = prev.Distance + geo.Distance(prev.Points[n-1], e.Point)
	}
	return next, true
}
