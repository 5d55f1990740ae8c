package marketdata

import (
	"strconv"
	"strings"
)

// Upstream numeric fields arrive as strings with formatting noise: trailing
// "%", thousands separators, currency signs. Strip before converting and
// treat unparsable values as 0 so NaN never reaches a normalized shape.

func parseFloatLoose(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntLoose(raw string) int64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		// Some providers send volumes as floats ("12500000.0").
		if f, ferr := strconv.ParseFloat(cleaned, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return v
}
