package detection

import "strconv"

// formatFloat and formatInt build compact evidence strings without pulling
// in fmt's reflection-based formatting on the hot detection path.

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
