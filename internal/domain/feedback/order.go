package feedback

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Catalog enumerates what the order form accepts.
type Catalog struct {
	SizeMinKg     float64  `json:"size_min_kg"`
	SizeMaxKg     float64  `json:"size_max_kg"`
	SizeStepKg    float64  `json:"size_step_kg"`
	SizeDefaultKg float64  `json:"size_default_kg"`
	CoffeeTypes   []string `json:"coffee_types"`
	RoastTypes    []string `json:"roast_types"`
}

// DefaultCatalog mirrors the shop's menu.
func DefaultCatalog() Catalog {
	return Catalog{
		SizeMinKg:     0.2,
		SizeMaxKg:     2.5,
		SizeStepKg:    0.1,
		SizeDefaultKg: 1.0,
		CoffeeTypes:   []string{"Arabica", "Robusta", "Excelsa", "Liberica"},
		RoastTypes:    []string{"Light", "Medium", "Dark"},
	}
}

// DefaultOrder is the order the form starts with.
func (c Catalog) DefaultOrder() Order {
	o := Order{SizeKg: c.SizeDefaultKg}
	if len(c.CoffeeTypes) > 0 {
		o.CoffeeType = c.CoffeeTypes[0]
	}
	if len(c.RoastTypes) > 0 {
		o.RoastType = c.RoastTypes[0]
	}
	return o
}

// Order is one canonical prediction request.
type Order struct {
	SizeKg     float64 `json:"size_kg"`
	CoffeeType string  `json:"coffee_type"`
	RoastType  string  `json:"roast_type"`
}

// Normalize clamps and snaps the size to the catalog grid and resolves the
// categorical fields to their canonical spelling.
func (o Order) Normalize(c Catalog) (Order, error) {
	if math.IsNaN(o.SizeKg) || math.IsInf(o.SizeKg, 0) {
		return Order{}, fmt.Errorf("%w: size %v is not a number", ErrInvalidOrder, o.SizeKg)
	}
	coffee, ok := lookup(c.CoffeeTypes, o.CoffeeType)
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown coffee type %q", ErrInvalidOrder, o.CoffeeType)
	}
	roast, ok := lookup(c.RoastTypes, o.RoastType)
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown roast type %q", ErrInvalidOrder, o.RoastType)
	}
	return Order{
		SizeKg:     snap(o.SizeKg, c.SizeMinKg, c.SizeMaxKg, c.SizeStepKg),
		CoffeeType: coffee,
		RoastType:  roast,
	}, nil
}

// Summary renders the compact input encoding stored in the log.
func (o Order) Summary() string {
	return "size=" + FormatSize(o.SizeKg) + "kg, coffee=" + o.CoffeeType + ", roast=" + o.RoastType
}

// FormatSize prints a size with at least one decimal: 1 -> "1.0".
func FormatSize(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func lookup(allowed []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a, true
		}
	}
	return "", false
}

// snap clamps v to [lo, hi] and rounds it to the nearest step above lo.
func snap(v, lo, hi, step float64) float64 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	if step > 0 {
		v = lo + math.Round((v-lo)/step)*step
		if v > hi {
			v = hi
		}
	}
	// Drop binary noise such as 0.30000000000000004.
	return math.Round(v*1e6) / 1e6
}
