package vesting

import (
	"math/big"
	"time"
)

// ForecastPoint is the projected state of a schedule on one day.
type ForecastPoint struct {
	Date       time.Time
	Vested     *big.Int
	Releasable *big.Int
}

// Forecast projects vested and releasable amounts for days consecutive days starting
// at from, assuming no further releases.
func (s *Schedule) Forecast(from time.Time, days int) []ForecastPoint {
	if days <= 0 {
		return nil
	}
	released := s.Released()
	points := make([]ForecastPoint, 0, days)
	for i := 0; i < days; i++ {
		at := from.AddDate(0, 0, i)
		vested := s.VestedAmount(at)
		points = append(points, ForecastPoint{
			Date:       at,
			Vested:     vested,
			Releasable: releasable(vested, released),
		})
	}
	return points
}
