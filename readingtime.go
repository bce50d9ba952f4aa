package pubfront

import (
	"math"

	"github.com/eringen/pubfront/richtext"
)

// WordsPerMinute is the reading speed ReadingTime assumes.
const WordsPerMinute = 200

// ReadingTime estimates the minutes needed to read the bodies of content,
// rounded to the nearest minute. Headings are not counted.
func ReadingTime(content []ContentGroup) int {
	words := 0
	for _, g := range content {
		words += richtext.WordCount(g.Body)
	}
	return int(math.Round(float64(words) / WordsPerMinute))
}
