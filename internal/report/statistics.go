package report

import (
	"math"
	"slices"
)

const (
	maximumHistogramBucketsConstant = 10
	degenerateRangePaddingConstant  = 0.5
)

// Statistics summarizes the samples of an aggregate step.
type Statistics struct {
	Count     int               `json:"count" yaml:"count"`
	Mean      float64           `json:"mean_seconds" yaml:"mean_seconds"`
	Median    float64           `json:"median_seconds" yaml:"median_seconds"`
	Minimum   float64           `json:"min_seconds" yaml:"min_seconds"`
	Maximum   float64           `json:"max_seconds" yaml:"max_seconds"`
	Histogram []HistogramBucket `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// HistogramBucket is one equal-width bin of the sample distribution.
type HistogramBucket struct {
	Center float64 `json:"center_seconds" yaml:"center_seconds"`
	Count  int     `json:"count" yaml:"count"`
}

// Summarize computes statistics over the samples. The histogram uses min(10, len(samples)) equal-width bins.
func Summarize(samples []float64) Statistics {
	if len(samples) == 0 {
		return Statistics{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	total := 0.0
	for _, sample := range sorted {
		total += sample
	}

	statistics := Statistics{
		Count:   len(sorted),
		Mean:    total / float64(len(sorted)),
		Median:  median(sorted),
		Minimum: sorted[0],
		Maximum: sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		statistics.Histogram = histogram(sorted, min(maximumHistogramBucketsConstant, len(sorted)))
	}
	return statistics
}

func median(sorted []float64) float64 {
	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	return (sorted[middle-1] + sorted[middle]) / 2
}

func histogram(sorted []float64, bucketCount int) []HistogramBucket {
	lower := sorted[0]
	upper := sorted[len(sorted)-1]
	if lower == upper {
		lower -= degenerateRangePaddingConstant
		upper += degenerateRangePaddingConstant
	}
	width := (upper - lower) / float64(bucketCount)

	buckets := make([]HistogramBucket, bucketCount)
	for index := range buckets {
		buckets[index].Center = lower + width*(float64(index)+degenerateRangePaddingConstant)
	}
	for _, sample := range sorted {
		position := int(math.Floor((sample - lower) / width))
		if position >= bucketCount {
			position = bucketCount - 1
		}
		if position < 0 {
			position = 0
		}
		buckets[position].Count++
	}
	return buckets
}
