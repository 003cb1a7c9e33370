package tours

import "strings"

// rule maps any lowercase substring hit to a canonical catalog label. Rules
// are evaluated in order and the first hit wins, so broad numeric buckets
// ("1" also matching "10") resolve the same way every time.
type rule struct {
	keywords []string
	label    string
}

var tourTypeRules = []rule{
	{[]string{"walk"}, "Walking Tour"},
	{[]string{"food", "eat", "culinary"}, "Food Tour"},
	{[]string{"history", "historical"}, "Historical Tour"},
	{[]string{"art", "museum"}, "Art Tour"},
	{[]string{"photo"}, "Photography Tour"},
	{[]string{"night"}, "Night Tour"},
	{[]string{"bike", "cycling"}, "Bike Tour"},
}

var dateRules = []rule{
	{[]string{"today"}, "today"},
	{[]string{"tomorrow"}, "tomorrow"},
	{[]string{"weekend"}, "weekend"},
	{[]string{"monday"}, "Monday"},
	{[]string{"tuesday"}, "Tuesday"},
	{[]string{"wednesday"}, "Wednesday"},
	{[]string{"thursday"}, "Thursday"},
	{[]string{"friday"}, "Friday"},
	{[]string{"saturday"}, "Saturday"},
	{[]string{"sunday"}, "Sunday"},
}

var timeRules = []rule{
	{[]string{"morning", "9", "10"}, "9 AM"},
	{[]string{"lunch", "noon", "12"}, "12 PM"},
	{[]string{"afternoon", "1", "2"}, "2 PM"},
	{[]string{"evening", "6", "7"}, "6 PM"},
	{[]string{"night", "8"}, "8 PM"},
}

// normalize lowercases the input and applies the rule table. Absent values
// (empty or the extraction sentinel) come back as "", anything unmatched is
// passed through verbatim for the LIKE queries to chew on.
func normalize(value string, rules []rule) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "N/A") {
		return ""
	}
	lowered := strings.ToLower(trimmed)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.label
			}
		}
	}
	return value
}

// NormalizeTourType canonicalizes a free-text tour type hint.
func NormalizeTourType(v string) string { return normalize(v, tourTypeRules) }

// NormalizeDate canonicalizes a free-text date hint.
func NormalizeDate(v string) string { return normalize(v, dateRules) }

// NormalizeTime buckets a free-text time hint into a catalog time slot.
func NormalizeTime(v string) string { return normalize(v, timeRules) }
