package tracking

import "github.com/edge-hybrid/location-tracker/internal/shared/geo"

// State is one committed snapshot of the live session. Values are never
// modified after they are committed; every change produces a new State.
type State struct {
	SessionID  string      `json:"session_id,omitempty"`
	Points     []geo.Point `json:"points"`
	IsTracking bool        `json:"is_tracking"`
	StartTime  *int64      `json:"start_time"`
	EndTime    *int64      `json:"end_time"`
	Distance   float64     `json:"distance_m"`
}

// LastPoint returns the most recent fix, if any.
func (s State) LastPoint() (geo.Point, bool) {
	if len(s.Points) == 0 {
		return geo.Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Progress is the compact form of State pushed to live viewers.
type Progress struct {
	SessionID  string     `json:"session_id"`
	IsTracking bool       `json:"is_tracking"`
	StartTime  *int64     `json:"start_time"`
	EndTime    *int64     `json:"end_time"`
	Distance   float64    `json:"distance_m"`
	PointCount int        `json:"point_count"`
	LastPoint  *geo.Point `json:"last_point,omitempty"`
}

func progressOf(s State) Progress {
	p := Progress{
		SessionID:  s.SessionID,
		IsTracking: s.IsTracking,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Distance:   s.Distance,
		PointCount: len(s.Points),
	}
	if last, ok := s.LastPoint(); ok {
		p.LastPoint = &last
	}
	return p
}

type Summary struct {
	SessionID   string  `json:"session_id"`
	PointCount  int     `json:"point_count"`
	DurationSec float64 `json:"duration_sec"`
	DistanceM   float64 `json:"distance_m"`
	PaceMps     float64 `json:"pace_mps"`
	SpeedKmh    float64 `json:"speed_kmh"`
	Calories    float64 `json:"calories"`
}

type NoticeKind string

const (
	NoticePermissionDenied NoticeKind = "permission_denied"
	NoticeLocationError    NoticeKind = "location_error"
	NoticeFixError         NoticeKind = "fix_error"
)

// Notice is a user-facing message about a failed interaction.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Message is the envelope written to live viewers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
