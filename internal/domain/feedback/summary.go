package feedback

import "regexp"

var (
	coffeePattern = regexp.MustCompile(`coffee=(\w+)`)
	roastPattern  = regexp.MustCompile(`roast=(\w+)`)
)

// ParseSummary extracts the coffee and roast categories from an input
// summary. A failed match yields an empty string for that category.
func ParseSummary(s string) (coffee, roast string) {
	if m := coffeePattern.FindStringSubmatch(s); m != nil {
		coffee = m[1]
	}
	if m := roastPattern.FindStringSubmatch(s); m != nil {
		roast = m[1]
	}
	return coffee, roast
}

// BackfillCategories fills missing structured categories from the summary.
// Rows written before the categories became columns rely on this.
func (r *Record) BackfillCategories() {
	if r.CoffeeType != "" && r.RoastType != "" {
		return
	}
	coffee, roast := ParseSummary(r.InputSummary)
	if r.CoffeeType == "" {
		r.CoffeeType = coffee
	}
	if r.RoastType == "" {
		r.RoastType = roast
	}
}
