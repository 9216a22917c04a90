package intent

import (
	"sort"
	"strings"
)

// NormalizeLabel lowercases and trims a topic label for matching.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// LabelsMatch reports whether two labels refer to the same subject:
// case-insensitive substring containment in either direction. Short
// labels can therefore absorb longer re-mentions ("cafe" matches
// "rooftop cafe bar"), which is accepted imprecision.
func LabelsMatch(a, b string) bool {
	na, nb := NormalizeLabel(a), NormalizeLabel(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// BestMatch selects the non-terminal candidate whose label matches the
// detected label, preferring higher confidence and then the most recent
// signal time.
func BestMatch(label string, candidates []TopicIntent) (TopicIntent, bool) {
	var best TopicIntent
	found := false
	for _, c := range candidates {
		if c.Terminal() || !LabelsMatch(label, c.Topic) {
			continue
		}
		if !found || c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.LastSignalAt.After(best.LastSignalAt)) {
			best = c
			found = true
		}
	}
	return best, found
}

// containmentMatches keeps the non-terminal candidates whose label
// matches label under the containment rule. Store backends whose
// candidate query is broader than the rule (LIKE treats % and _ as
// wildcards) run their rows through it, so both backends answer
// identically.
func containmentMatches(label string, topics []TopicIntent) []TopicIntent {
	out := topics[:0]
	for _, t := range topics {
		if t.Terminal() || !LabelsMatch(label, t.Topic) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Warmest returns the highest-confidence non-terminal topic, tie-broken
// by most recent signal time.
func Warmest(candidates []TopicIntent) (TopicIntent, bool) {
	var best TopicIntent
	found := false
	for _, c := range candidates {
		if c.Terminal() {
			continue
		}
		if !found || c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.LastSignalAt.After(best.LastSignalAt)) {
			best = c
			found = true
		}
	}
	return best, found
}

// SortByWarmth orders topics hottest first: confidence descending, then
// most recent signal first.
func SortByWarmth(topics []TopicIntent) {
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Confidence != topics[j].Confidence {
			return topics[i].Confidence > topics[j].Confidence
		}
		return topics[i].LastSignalAt.After(topics[j].LastSignalAt)
	})
}

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryFood, []string{
		"restaurant", "dinner", "lunch", "brunch", "breakfast", "food",
		"cafe", "coffee", "pizza", "sushi", "taco", "ramen", "bakery",
	}},
	{CategoryTravel, []string{
		"trip", "travel", "flight", "getaway", "vacation", "hotel",
		"beach", "roadtrip", "weekend away",
	}},
	{CategoryNightlife, []string{
		"bar", "club", "drinks", "cocktail", "party", "night out",
		"rooftop",
	}},
	{CategoryActivity, []string{
		"hike", "climb", "gym", "run", "concert", "museum", "movie",
		"game", "yoga", "tennis", "festival", "class",
	}},
}

// InferCategory maps a free-text label to a coarse category through a
// fixed keyword table. The first table entry that hits wins; labels
// matching nothing fall back to CategoryOther.
func InferCategory(label string) Category {
	in := NormalizeLabel(label)
	if in == "" {
		return CategoryOther
	}
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(in, kw) {
				return entry.category
			}
		}
	}
	return CategoryOther
}
