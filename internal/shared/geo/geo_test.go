package geo

import (
	"math"
	"testing"
	"testing/quick"
)

func TestDistanceJakartaBandung(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := Distance(Point{Lat: -6.2, Lng: 106.816}, Point{Lat: -6.9175, Lng: 107.6191}) / 1000
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceEquatorArc(t *testing.T) {
	d := Distance(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 0.001, Timestamp: 1000})
	if math.Abs(d-111.19) > 0.01 {
		t.Fatalf("expected ~111.19 m, got %v", d)
	}
}

func TestDistanceCoincident(t *testing.T) {
	p := Point{Lat: 51.5, Lng: -0.12, Timestamp: 1}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
	later := p
	later.Timestamp = 99999
	if d := Distance(p, later); d != 0 {
		t.Fatalf("timestamp should not matter, got %v", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	f := func(lat1, lng1, lat2, lng2 float64) bool {
		a := Point{Lat: math.Mod(lat1, 90), Lng: math.Mod(lng1, 180)}
		b := Point{Lat: math.Mod(lat2, 90), Lng: math.Mod(lng2, 180)}
		return math.Abs(Distance(a, b)-Distance(b, a)) < 1e-6
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 1000}); err != nil {
		t.Error(err)
	}
}

func TestDistanceNaNPropagates(t *testing.T) {
	d := Distance(Point{Lat: math.NaN()}, Point{Lat: 1, Lng: 1})
	if !math.IsNaN(d) {
		t.Fatalf("expected NaN, got %v", d)
	}
}

func TestFinite(t *testing.T) {
	if !(Point{Lat: 1, Lng: 2}).Finite() {
		t.Fatalf("expected finite")
	}
	if (Point{Lat: math.NaN(), Lng: 2}).Finite() {
		t.Fatalf("expected NaN lat rejected")
	}
	if (Point{Lat: 1, Lng: math.Inf(1)}).Finite() {
		t.Fatalf("expected Inf lng rejected")
	}
}

func TestPointTime(t *testing.T) {
	p := Point{Timestamp: 1_700_000_000_123}
	if got := p.Time(); got.UnixMilli() != p.Timestamp {
		t.Fatalf("unexpected time %v", got)
	}
}
