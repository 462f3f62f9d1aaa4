// Package sizefmt renders byte counts and ratios for progress lines and CLI output.
//
// Sizes use binary units (KiB, MiB, GiB). The largest unit whose magnitude is
// at least 1 is chosen; values below one KiB are printed as a bare integer
// with the unit "ib".
package sizefmt

import (
	"fmt"
	"math"

	"github.com/alecthomas/units"
)

// Size formats a byte count, e.g. 1023 -> "1023 ib", 1024 -> "1.00 KiB".
// Negative counts are printed in the "ib" form unchanged.
func Size(bytes int64) string {
	b := float64(bytes)
	switch {
	case b >= float64(units.GiB):
		return fmt.Sprintf("%.2f GiB", b/float64(units.GiB))
	case b >= float64(units.MiB):
		return fmt.Sprintf("%.2f MiB", b/float64(units.MiB))
	case b >= float64(units.KiB):
		return fmt.Sprintf("%.2f KiB", b/float64(units.KiB))
	default:
		return fmt.Sprintf("%d ib", bytes)
	}
}

// Ratio returns numerator/denominator as a percentage.
// A zero denominator yields 0.
func Ratio(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}

// Percent formats numerator/denominator as a whole percentage with a trailing "%".
//
// Halves round to even, so 12.5 renders as "12%" and 37.5 as "38%".
// A zero denominator yields "0%".
func Percent(numerator, denominator int64) string {
	return fmt.Sprintf("%.0f%%", math.RoundToEven(Ratio(numerator, denominator)))
}
