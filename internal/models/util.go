package models

import "math"

func round(f float64) float64 {
	return math.Round(f*100) / 100
}
