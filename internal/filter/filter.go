// internal/filter/filter.go
// Package filter provides the stateless signal filters used by the pulse
// detection pipeline. All functions are pure and length-preserving: the
// output slice always has the same length as the input, so indices into a
// filtered signal map directly back to buffer positions and timestamps.
package filter

import "math"

// MovingAverage returns the causal moving average of series: each output
// position i is the mean of series[max(0, i-windowSize+1) .. i]. The window
// shrinks at the start of the series rather than padding, so early values
// average over fewer samples. A windowSize below 1 is treated as 1
// (identity).
func MovingAverage(series []float64, windowSize int) []float64 {
	out := make([]float64, len(series))
	if windowSize < 1 {
		windowSize = 1
	}

	// Running sum over the trailing window
	var sum float64
	for i, v := range series {
		sum += v
		if i >= windowSize {
			sum -= series[i-windowSize]
		}
		n := i + 1
		if n > windowSize {
			n = windowSize
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Detrend removes a linear trend from series by fitting an ordinary
// least-squares line of value against index and subtracting the fitted value
// at each position. A series of length 0 or 1 has no defined slope and is
// returned as an unchanged copy.
func Detrend(series []float64) []float64 {
	out := make([]float64, len(series))
	if len(series) <= 1 {
		copy(out, series)
		return out
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range series {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n

	for i, v := range series {
		out[i] = v - (intercept + slope*float64(i))
	}
	return out
}

// Normalize returns series shifted to zero mean and scaled to unit
// population standard deviation. A constant series (zero deviation) yields
// an all-zero slice of the same length; an empty series yields an empty
// slice.
func Normalize(series []float64) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}

	m := mean(series)
	var sumSq float64
	for _, v := range series {
		d := v - m
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(series)))

	if std == 0 {
		return out
	}
	for i, v := range series {
		out[i] = (v - m) / std
	}
	return out
}

// Bandpass applies a two-stage filter: a high-pass stage that subtracts from
// each element the value lowCutSize positions behind it, followed by a
// low-pass stage that is MovingAverage with window highCutSize.
//
// The first lowCutSize elements have no lagged counterpart and pass through
// the high-pass stage unmodified. Downstream detection is calibrated against
// this exact lagged-difference form, so keep it as is.
func Bandpass(series []float64, lowCutSize, highCutSize int) []float64 {
	highpassed := make([]float64, len(series))
	for i, v := range series {
		if i < lowCutSize {
			highpassed[i] = v
		} else {
			highpassed[i] = v - series[i-lowCutSize]
		}
	}
	return MovingAverage(highpassed, highCutSize)
}

// PeakOptions controls peak acceptance in FindPeaks.
type PeakOptions struct {
	// MinHeight, when non-nil, requires a candidate to strictly exceed it.
	MinHeight *float64
	// MinDistance, when positive, enforces an exclusion zone: a candidate
	// closer than MinDistance to the last accepted peak replaces it only if
	// strictly taller, and is otherwise dropped. Equal heights keep the
	// earlier peak.
	MinDistance int
}

// FindPeaks returns the indices of strict local maxima in series: positions
// i where series[i-1] < series[i] and series[i+1] < series[i]. Flat plateaus
// never qualify. A series shorter than 3 has no interior and yields no
// peaks.
func FindPeaks(series []float64, opts PeakOptions) []int {
	if len(series) < 3 {
		return nil
	}

	var peaks []int
	for i := 1; i < len(series)-1; i++ {
		if series[i-1] >= series[i] || series[i+1] >= series[i] {
			continue
		}
		if opts.MinHeight != nil && series[i] <= *opts.MinHeight {
			continue
		}

		if opts.MinDistance > 0 && len(peaks) > 0 {
			last := peaks[len(peaks)-1]
			if i-last < opts.MinDistance {
				// Inside the exclusion zone: tallest survivor wins
				if series[i] > series[last] {
					peaks[len(peaks)-1] = i
				}
				continue
			}
		}

		peaks = append(peaks, i)
	}
	return peaks
}

// mean returns the arithmetic mean of series. Callers must not pass an
// empty slice.
func mean(series []float64) float64 {
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}
