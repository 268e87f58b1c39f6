package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	tCases := []struct {
		name     string
		a        Coord
		b        Coord
		expected float64
		delta    float64
	}{
		{
			name:     "same point",
			a:        Coord{Lat: 10.0, Lon: 106.0},
			b:        Coord{Lat: 10.0, Lon: 106.0},
			expected: 0,
			delta:    0.0001,
		},
		{
			name:     "short city hop",
			a:        Coord{Lat: 10.0, Lon: 106.0},
			b:        Coord{Lat: 10.05, Lon: 106.05},
			expected: 7.80,
			delta:    0.01,
		},
		{
			name:     "quarter of the equator",
			a:        Coord{Lat: 0, Lon: 0},
			b:        Coord{Lat: 0, Lon: 90},
			expected: 10007.5,
			delta:    1.0,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			require.InDelta(t, tCase.expected, DistanceKm(tCase.a, tCase.b), tCase.delta)
		})
	}
}

func TestDistanceKmIsSymmetric(t *testing.T) {
	a := Coord{Lat: 10.0, Lon: 106.0}
	b := Coord{Lat: 10.77, Lon: 106.69}

	require.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 0.0000001)
}

func TestFeeFor(t *testing.T) {
	schedule := FeeSchedule{BaseCents: 200, PerKmCents: 50}

	tCases := []struct {
		name       string
		distanceKm float64
		expected   int64
	}{
		{name: "zero distance is base fee only", distanceKm: 0, expected: 200},
		{name: "fraction of a km bills a whole km", distanceKm: 0.2, expected: 250},
		{name: "exact km boundary", distanceKm: 3.0, expected: 350},
		{name: "started km rounds up", distanceKm: 7.803, expected: 600},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			require.Equal(t, tCase.expected, schedule.FeeFor(tCase.distanceKm))
		})
	}
}

func TestFeeForMonotonic(t *testing.T) {
	schedule := FeeSchedule{BaseCents: 200, PerKmCents: 50}

	previous := schedule.FeeFor(0)
	for km := 0.5; km < 20; km += 0.5 {
		fee := schedule.FeeFor(km)
		require.GreaterOrEqual(t, fee, previous)
		previous = fee
	}
}
