package util

import "strconv"

// FormatSize renders n bytes in the largest unit (MB, KB, bytes) that keeps
// the value at one or above, with at most one decimal.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return trimUnit(float64(n)/(1<<20)) + "MB"
	case n >= 1<<10:
		return trimUnit(float64(n)/(1<<10)) + "KB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}

func trimUnit(v float64) string {
	return strconv.FormatFloat(float64(int64(v*10))/10, 'f', -1, 64)
}
