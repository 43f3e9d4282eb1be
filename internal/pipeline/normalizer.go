package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chpollin/depcha-dashboard/internal/domain"
)

var (
	fullDateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearMonthRegex = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearRegex      = regexp.MustCompile(`^\d{4}$`)
	numberRegex    = regexp.MustCompile(`\d+(\.\d+)?`)
	measureRegex   = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(.*)$`)
)

// Archive labels for the resource classification field.
const (
	LabelMonetaryValue = "monetary value"
	LabelService       = "service"
	LabelCommodity     = "commodity"
)

// ParseDate accepts YYYY-MM-DD, YYYY-MM and YYYY and returns UTC midnight of the
// first matching day. Any other input, including padded text and impossible
// calendar dates, fails.
func ParseDate(text string) (time.Time, bool) {
	var layout string
	switch {
	case fullDateRegex.MatchString(text):
		layout = "2006-01-02"
	case yearMonthRegex.MatchString(text):
		layout = "2006-01"
	case yearRegex.MatchString(text):
		layout = "2006"
	default:
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout, text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractValue returns the last number embedded in a free-text entry.
func ExtractValue(text string) *float64 {
	matches := numberRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// ClassifyResource maps an archive resource label to a ResourceType.
// Unknown and empty labels are economic goods.
func ClassifyResource(label string) domain.ResourceType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case LabelMonetaryValue:
		return domain.ResourceMoney
	case LabelService:
		return domain.ResourceServiceRight
	case LabelCommodity:
		return domain.ResourceEconomicGood
	default:
		return domain.ResourceEconomicGood
	}
}

// ExtractID returns the fragment after the last '#' of a URI, or "" when there is none.
func ExtractID(uri string) string {
	idx := strings.LastIndex(uri, "#")
	if idx < 0 {
		return ""
	}
	return uri[idx+1:]
}

// BookIDFromURI returns the last path segment before the fragment of a transaction URI.
func BookIDFromURI(uri string) string {
	base := uri
	if idx := strings.Index(base, "#"); idx >= 0 {
		base = base[:idx]
	}
	segments := strings.Split(base, "/")
	return segments[len(segments)-1]
}

// Measure is the quantity and unit of a commodity measure field.
type Measure struct {
	Quantity float64
	Unit     string
}

// ParseMeasure splits a measure such as "12 lb" into quantity and unit.
func ParseMeasure(text string) (Measure, bool) {
	m := measureRegex.FindStringSubmatch(text)
	if m == nil {
		return Measure{}, false
	}
	q, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Measure{}, false
	}
	return Measure{Quantity: q, Unit: strings.TrimSpace(m[2])}, true
}

// ValueOf is the value of a transfer for summation: its value when present, zero otherwise.
func ValueOf(t domain.Transfer) float64 {
	if t.Value == nil {
		return 0
	}
	return *t.Value
}
