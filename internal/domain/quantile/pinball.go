package quantile

import "math"

// Pinball is the check loss of predicting yhat for outcome y at level tau.
func Pinball(tau, y, yhat float64) float64 {
	e := y - yhat
	return math.Max(tau*e, (tau-1)*e)
}
