package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-audio-relay/internal/domain"
)

// ErrInvalidRange reports a range expression that is not N or N-M.
var ErrInvalidRange = errors.New("invalid range")

// Range is a 1-based inclusive window over a catalog. Zero End means open.
type Range struct {
	Start int
	End   int
}

// ParseRange accepts "", "N" or "N-" (from N to the end) and "N-M".
// A start below 1 is clamped to 1.
func ParseRange(expr string) (Range, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Range{}, nil
	}
	startRaw, endRaw, hasEnd := strings.Cut(expr, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startRaw))
	if err != nil || start < 0 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, expr)
	}
	start = max(start, 1)
	endRaw = strings.TrimSpace(endRaw)
	if !hasEnd || endRaw == "" {
		return Range{Start: start}, nil
	}
	end, err := strconv.Atoi(endRaw)
	if err != nil || end < start {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, expr)
	}
	return Range{Start: start, End: end}, nil
}

// Apply slices items by r. Start is clamped to at least 1 and End to len(items).
func (r Range) Apply(items []domain.CatalogItem) []domain.CatalogItem {
	start := r.Start
	if start < 1 {
		start = 1
	}
	end := len(items)
	if r.End > 0 && r.End < end {
		end = r.End
	}
	if start > end {
		return nil
	}
	return items[start-1 : end]
}

// String renders r back into its textual form.
func (r Range) String() string {
	switch {
	case r.Start <= 0 && r.End <= 0:
		return ""
	case r.End <= 0:
		return strconv.Itoa(r.Start)
	default:
		return fmt.Sprintf("%d-%d", max(r.Start, 1), r.End)
	}
}
