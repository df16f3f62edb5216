package features

import "math"

// submovements counts the peaks of the speed profile whose topographic
// prominence is at least minProminence. The profile is padded with a zero
// at both ends so movements that start or stop at the window edge still
// form peaks. A flat top counts as one peak.
func submovements(speed []float64, minProminence float64) int {
	p := make([]float64, 0, len(speed)+2)
	p = append(p, 0)
	p = append(p, speed...)
	p = append(p, 0)

	count := 0
	for i := 1; i < len(p)-1; i++ {
		if p[i] <= p[i-1] {
			continue
		}
		end := i
		for end+1 < len(p) && p[end+1] == p[i] {
			end++
		}
		if end+1 >= len(p) || p[end+1] > p[i] {
			i = end
			continue
		}
		if prominence(p, i, end) >= minProminence {
			count++
		}
		i = end
	}
	return count
}

// prominence of the plateau p[start..end]: its height above the higher of
// the two lowest points reached before a taller sample on either side.
func prominence(p []float64, start, end int) float64 {
	h := p[start]
	leftMin := h
	for j := start - 1; j >= 0 && p[j] <= h; j-- {
		leftMin = math.Min(leftMin, p[j])
	}
	rightMin := h
	for j := end + 1; j < len(p) && p[j] <= h; j++ {
		rightMin = math.Min(rightMin, p[j])
	}
	return h - math.Max(leftMin, rightMin)
}
