package loadgen

import (
	"crypto/rand"
	"math/big"
)

const randomFloatDivisor = 1000000

var comments = []string{
	"", "", "",
	"Spot on for a weekday order.",
	"Estimate felt a bit high.",
	"Too low for a dark roast.",
	"Close to what we billed.",
	"Robusta orders always come in under.",
}

// Order mirrors the JSON body of POST /api/predict.
type Order struct {
	SizeKg     float64 `json:"size_kg"`
	CoffeeType string  `json:"coffee_type"`
	RoastType  string  `json:"roast_type"`
}

// Feedback mirrors the JSON body of POST /api/feedback.
type Feedback struct {
	Score int    `json:"feedback_score"`
	Text  string `json:"feedback_text,omitempty"`
}

// Catalog mirrors GET /api/options.
type Catalog struct {
	SizeMinKg   float64  `json:"size_min_kg"`
	SizeMaxKg   float64  `json:"size_max_kg"`
	SizeStepKg  float64  `json:"size_step_kg"`
	CoffeeTypes []string `json:"coffee_types"`
	RoastTypes  []string `json:"roast_types"`
}

// getRandomInt returns a uniform int in [0, n) using crypto/rand.
func getRandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// getRandomFloat returns a random float64 in [0, 1).
func getRandomFloat() float64 {
	return float64(getRandomInt(randomFloatDivisor)) / float64(randomFloatDivisor)
}

func pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[getRandomInt(len(options))]
}

// randomOrder draws an order on the catalog's size grid.
func randomOrder(c Catalog) Order {
	size := c.SizeMinKg
	if c.SizeStepKg > 0 && c.SizeMaxKg > c.SizeMinKg {
		steps := int((c.SizeMaxKg-c.SizeMinKg)/c.SizeStepKg + 0.5)
		size = c.SizeMinKg + float64(getRandomInt(steps+1))*c.SizeStepKg
	}
	return Order{SizeKg: size, CoffeeType: pick(c.CoffeeTypes), RoastType: pick(c.RoastTypes)}
}

// randomFeedback skews scores towards 3-5.
func randomFeedback() Feedback {
	score := 3 + getRandomInt(3)
	if getRandomFloat() < 0.2 {
		score = 1 + getRandomInt(2)
	}
	return Feedback{Score: score, Text: pick(comments)}
}
