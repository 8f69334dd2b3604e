package feed

import (
	"strings"

	"github.com/deusflow/pilbarawatch/internal/news"
)

// AllLabels disables a filter field, as does an empty value.
const AllLabels = "all"

// Filter narrows a feed to items carrying the given labels. Fields match
// exactly.
type Filter struct {
	Union    string `form:"union"`
	Category string `form:"category"`
	Company  string `form:"company"`
	Urgency  string `form:"urgency"`
}

func (f Filter) Active() bool {
	return set(f.Union) || set(f.Category) || set(f.Company) || set(f.Urgency)
}

func (f Filter) Match(it Item) bool {
	return matches(f.Union, it.Union) &&
		matches(f.Category, it.Category) &&
		matches(f.Company, it.Company) &&
		matches(f.Urgency, it.Urgency)
}

func set(want string) bool {
	want = strings.TrimSpace(want)
	return want != "" && !strings.EqualFold(want, AllLabels)
}

func matches(want, got string) bool {
	return !set(want) || strings.TrimSpace(want) == got
}

// Apply keeps the items f matches. When nothing is left the topic
// placeholder is returned instead.
func (b *Builder) Apply(topic news.Topic, items []Item, f Filter) []Item {
	if !f.Active() {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.Placeholder && f.Match(it) {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return []Item{b.Placeholder(topic)}
	}
	return out
}
