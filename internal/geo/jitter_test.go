package geo

import (
	"math"
	"testing"
)

func TestJitter_WithinRadius(t *testing.T) {
	baseLat, baseLng := 37.7749, -122.4194

	for i := 0; i < 1000; i++ {
		lat, lng := Jitter(baseLat, baseLng)

		dLat := lat - baseLat
		dLng := lng - baseLng

		// Each offset component is bounded by the radius.
		if math.Abs(dLat) > JitterRadius {
			t.Fatalf("latitude offset %f exceeds radius %f", dLat, JitterRadius)
		}
		if math.Abs(dLng) > JitterRadius {
			t.Fatalf("longitude offset %f exceeds radius %f", dLng, JitterRadius)
		}

		// The euclidean distance in degree-space is bounded too.
		if dist := math.Hypot(dLat, dLng); dist > JitterRadius+1e-9 {
			t.Fatalf("offset distance %f exceeds radius %f", dist, JitterRadius)
		}
	}
}

func TestJitter_IndependentScatter(t *testing.T) {
	baseLat, baseLng := 51.5074, -0.1278

	lat1, lng1 := Jitter(baseLat, baseLng)
	lat2, lng2 := Jitter(baseLat, baseLng)

	// Two draws colliding exactly is vanishingly unlikely.
	if lat1 == lat2 && lng1 == lng2 {
		t.Error("two independent jitters produced identical coordinates")
	}
}

func TestValidLat(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		want bool
	}{
		{"zero", 0, true},
		{"north pole", 90, true},
		{"south pole", -90, true},
		{"above range", 90.01, false},
		{"below range", -90.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidLat(tt.lat); got != tt.want {
				t.Errorf("ValidLat(%f) = %v, want %v", tt.lat, got, tt.want)
			}
		})
	}
}

func TestValidLng(t *testing.T) {
	tests := []struct {
		name string
		lng  float64
		want bool
	}{
		{"zero", 0, true},
		{"date line east", 180, true},
		{"date line west", -180, true},
		{"above range", 180.5, false},
		{"below range", -180.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidLng(tt.lng); got != tt.want {
				t.Errorf("ValidLng(%f) = %v, want %v", tt.lng, got, tt.want)
			}
		})
	}
}
