package core

import "math"

// percentEpsilon absorbs floating point noise when a percentage sits exactly
// on a tolerance boundary.
const percentEpsilon = 1e-9

// Classify compares actual against planned and applies the inclusive
// tolerance band [tolMin, tolMax] given in percent. Percent is nil when
// planned is zero; a non-zero deviation from a zero plan is never OK.
func Classify(planned, actual, tolMin, tolMax float64) Deviation {
	dev := Deviation{Delta: actual - planned}
	var pct float64
	if planned != 0 {
		pct = dev.Delta / planned * 100
		if !math.IsNaN(pct) && !math.IsInf(pct, 0) {
			dev.Percent = &pct
		}
	}
	switch {
	case actual == planned:
		dev.Status = StatusOK
	case actual < planned:
		if dev.Percent != nil && pct >= tolMin-percentEpsilon {
			dev.Status = StatusOK
		} else {
			dev.Status = StatusUnder
		}
	default:
		if dev.Percent != nil && pct <= tolMax+percentEpsilon {
			dev.Status = StatusOK
		} else {
			dev.Status = StatusOver
		}
	}
	return dev
}

// ClassifyWith is Classify using a Tolerance value.
func ClassifyWith(planned, actual float64, tol Tolerance) Deviation {
	return Classify(planned, actual, tol.MinPct, tol.MaxPct)
}
