package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NoCommentSentinel is the text a driver sends at the comments step to
// record that there is nothing to add. It is stored as an empty comment.
const NoCommentSentinel = "-"

// groupingReplacer strips thousands separators before numeric parsing.
// Commas are always grouping separators here; the decimal mark is ".".
var groupingReplacer = strings.NewReplacer(",", "", "_", "", " ", "", "\u00a0", "")

// ParseOdometer parses an odometer reading such as "12,345.6".
func ParseOdometer(text string) (decimal.Decimal, error) {
	cleaned := groupingReplacer.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("report: odometer: empty reading")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("report: odometer: %q is not a number: %w", text, err)
	}
	return d, nil
}

// ComputeDistance returns final - initial and whether it is acceptable (>= 0).
func ComputeDistance(initial, final decimal.Decimal) (decimal.Decimal, bool) {
	dist := final.Sub(initial)
	return dist, !dist.IsNegative()
}

// ParseJourneyType maps the keyboard answer to a JourneyType. Anything that
// is not recognisably a start is treated as an end of shift.
func ParseJourneyType(text string) JourneyType {
	if strings.Contains(text, "🟢") || strings.Contains(text, "Inicio") {
		return JourneyStart
	}
	return JourneyEnd
}

// NormalizePlate upper-cases the plate; no format validation is applied.
func NormalizePlate(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// NormalizeComments maps the no-comment sentinel to an empty comment.
func NormalizeComments(text string) string {
	if strings.TrimSpace(text) == NoCommentSentinel {
		return ""
	}
	return text
}
