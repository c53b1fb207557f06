package audio

import "math"

// ResampleLinear converts samples from fromRate to toRate by linear
// interpolation. It is intended for pre-recorded files fed through demo
// tooling; the live API path expects the producer to deliver audio at the
// engine's rate already.
//
// The input is mapped onto a grid of len(samples) evenly spaced timestamps
// over [0, duration) and interpolated at the target grid of
// round(duration*toRate) timestamps over the same half-open interval.
func ResampleLinear(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return samples
	}

	dur := float64(len(samples)) / float64(fromRate)
	n := int(math.Round(dur * float64(toRate)))
	if n <= 0 {
		return []float32{}
	}

	out := make([]float32, n)
	for j := 0; j < n; j++ {
		// Both grids share the same origin and duration, so the source
		// position of output sample j reduces to j*len/n.
		pos := float64(j) * float64(len(samples)) / float64(n)
		i := int(pos)
		if i >= len(samples)-1 {
			out[j] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(i)
		v := float64(samples[i]) + frac*(float64(samples[i+1])-float64(samples[i]))
		out[j] = float32(v)
	}
	return out
}
