package catalog

import "math"

// Select returns the leading ceil(n * coverage / 100) endpoints applicable to
// cat, where n is the number of applicable endpoints. The result is a fixed
// prefix so every session of the same tier walks the same path.
func Select(c Catalog, cat Category, coveragePercent float64) []Endpoint {
	applicable := c.For(cat)
	n := SelectionSize(len(applicable), coveragePercent)
	return applicable[:n]
}

// SelectionSize is the number of endpoints a coverage target asks for, clamped
// to [0, total].
func SelectionSize(total int, coveragePercent float64) int {
	if total <= 0 || coveragePercent <= 0 {
		return 0
	}
	// Round away float noise (9*0.9 = 8.100000000000001) before taking the ceiling.
	raw := math.Round(float64(total)*coveragePercent/100*1e9) / 1e9
	n := int(math.Ceil(raw))
	if n > total {
		n = total
	}
	return n
}
