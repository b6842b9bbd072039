package tagger

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

type unitScale struct {
	word  string
	scale float64
}

// checked in order; the first unit word present wins.
var unitScales = []unitScale{
	{word: "week", scale: 40},
	{word: "day", scale: 8},
	{word: "hour", scale: 1},
	{word: "minute", scale: 1.0 / 60},
}

// DurationToHours turns an informal estimate like "2-3 hours" into hours.
// Ranges average their first two numbers. Text with no digits yields 0 and
// a number without a unit word is read as hours.
func DurationToHours(text string) float64 {
	value := strings.ToLower(text)
	tokens := numberPattern.FindAllString(value, -1)
	numbers := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.ParseFloat(strings.TrimSuffix(tok, "."), 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	if len(numbers) == 0 {
		return 0
	}
	magnitude := numbers[0]
	if len(numbers) > 1 {
		magnitude = (numbers[0] + numbers[1]) / 2
	}
	for _, u := range unitScales {
		if strings.Contains(value, u.word) {
			return magnitude * u.scale
		}
	}
	return numbers[0]
}
