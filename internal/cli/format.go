package cli

import (
	"fmt"
	"strings"
)

// FormatVolume renders a liter quantity in a compact human form,
// e.g. "1.24B liters" or "356.0M liters".
func FormatVolume(liters float64) string {
	switch {
	case liters >= 1e9:
		return fmt.Sprintf("%.2fB liters", liters/1e9)
	case liters >= 1e6:
		return fmt.Sprintf("%.1fM liters", liters/1e6)
	case liters >= 1e3:
		return fmt.Sprintf("%.1fK liters", liters/1e3)
	default:
		return fmt.Sprintf("%.0f liters", liters)
	}
}

// FormatMXN renders a peso amount with thousands separators.
func FormatMXN(amount float64) string {
	return "$" + groupThousands(amount) + " MXN"
}

// FormatUSD renders a dollar amount with thousands separators.
func FormatUSD(amount float64) string {
	return "$" + groupThousands(amount) + " USD"
}

// FormatPrice renders a per-liter price.
func FormatPrice(pesosPerLiter float64) string {
	return fmt.Sprintf("$%.2f/L", pesosPerLiter)
}

func groupThousands(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]

	neg := strings.HasPrefix(whole, "-")
	if neg {
		whole = whole[1:]
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}
