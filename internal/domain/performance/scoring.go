package performance

import (
	"fmt"
	"math"
)

const MaxTotalScore = MetricCount * MaxMetricValue

const (
	CategoryOutstanding      = "Outstanding"
	CategoryExcellent        = "Excellent"
	CategoryGood             = "Good"
	CategoryAverage          = "Average"
	CategoryNeedsImprovement = "Needs Improvement"
)

// Score sums the metrics, counting unscored ones as zero. The average always
// divides by the full metric count so partial evaluations score lower.
func Score(s Scores) (total int, average float64) {
	for m := range MetricCount {
		total += s.Value(Metric(m))
	}
	average = math.Round(float64(total)/MetricCount*100) / 100
	return total, average
}

func ScoreDisplay(total int) string {
	return fmt.Sprintf("%d / %d", total, MaxTotalScore)
}

func ScoreCategory(average float64) string {
	switch {
	case average >= 90:
		return CategoryOutstanding
	case average >= 75:
		return CategoryExcellent
	case average >= 60:
		return CategoryGood
	case average >= 40:
		return CategoryAverage
	default:
		return CategoryNeedsImprovement
	}
}
