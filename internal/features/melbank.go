package features

import "math"

// melFilterbank builds numFilters triangular filters equally spaced on
// the mel scale between fMin and fMax Hz, each row giving the linear-bin
// weights for one filter.
func melFilterbank(numFilters, fftSize, sampleRate int, fMin, fMax float64) [][]float64 {
	bins := fftSize/2 + 1
	melMin := hzToMel(fMin)
	melMax := hzToMel(fMax)

	// numFilters triangles need numFilters+2 mel-spaced boundary points.
	points := make([]float64, numFilters+2)
	for i := range points {
		points[i] = melMin + (melMax-melMin)*float64(i)/float64(numFilters+1)
	}
	hzPoints := make([]float64, len(points))
	for i, m := range points {
		hzPoints[i] = melToHz(m)
	}
	binPoints := make([]int, len(hzPoints))
	for i, hz := range hzPoints {
		binPoints[i] = int(math.Floor((float64(fftSize)+1)*hz/float64(sampleRate) + 0.5))
	}

	fb := make([][]float64, numFilters)
	for m := range numFilters {
		fb[m] = make([]float64, bins)
		left, center, right := binPoints[m], binPoints[m+1], binPoints[m+2]
		for k := left; k < center; k++ {
			if k < 0 || k >= bins || center == left {
				continue
			}
			fb[m][k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			if k < 0 || k >= bins || right == center {
				continue
			}
			fb[m][k] = float64(right-k) / float64(right-center)
		}
	}
	return fb
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// applyFilterbank computes y_m = sum_k W_{m,k} * |X_k| for each filter m.
func applyFilterbank(fb [][]float64, magnitudes []float64) []float64 {
	out := make([]float64, len(fb))
	for m, weights := range fb {
		var sum float64
		for k, w := range weights {
			if w == 0 {
				continue
			}
			sum += w * magnitudes[k]
		}
		out[m] = sum
	}
	return out
}
