package metrics

import (
	"math"
	"sort"
	"sync"
)

// Histogram tracks the distribution of values across predefined
// buckets. Thread-safe for concurrent use.
type Histogram struct {
	mu      sync.RWMutex
	bounds  []float64 // Upper bounds, ascending
	counts  []uint64  // Per-bucket counts; last slot is the overflow bucket
	sum     float64
	count   uint64
	min     float64
	max     float64
	sampled bool // min/max are only meaningful once something was observed
}

// NewHistogram creates a histogram with the given bucket upper bounds.
// The bounds are copied and sorted, so callers may pass shared slices.
func NewHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)

	return &Histogram{
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := sort.SearchFloat64s(h.bounds, v)
	h.counts[idx]++

	h.sum += v
	h.count++
	if !h.sampled || v < h.min {
		h.min = v
	}
	if !h.sampled || v > h.max {
		h.max = v
	}
	h.sampled = true
}

// HistogramSummary contains summarized histogram data.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// BucketCount is one cumulative histogram bucket.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary returns the current distribution with cumulative buckets and
// estimated p50/p90/p95/p99.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramSummary{
			Buckets:     make([]BucketCount, 0),
			Percentiles: make(map[float64]float64),
		}
	}

	buckets := make([]BucketCount, len(h.bounds)+1)
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += h.counts[i]
		buckets[i] = BucketCount{UpperBound: bound, Count: cumulative}
	}
	cumulative += h.counts[len(h.bounds)]
	buckets[len(h.bounds)] = BucketCount{UpperBound: math.Inf(1), Count: cumulative}

	return HistogramSummary{
		Count:       h.count,
		Sum:         h.sum,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Buckets:     buckets,
		Percentiles: h.estimatePercentiles(0.5, 0.9, 0.95, 0.99),
	}
}

// estimatePercentiles interpolates percentile values from the bucket
// counts. Callers must hold at least a read lock.
func (h *Histogram) estimatePercentiles(ps ...float64) map[float64]float64 {
	result := make(map[float64]float64, len(ps))
	if h.count == 0 {
		return result
	}

	for _, p := range ps {
		rank := p * float64(h.count)
		var cumulative uint64

		for i, c := range h.counts {
			cumulative += c
			if float64(cumulative) < rank {
				continue
			}

			switch {
			case i == 0:
				result[p] = h.bounds[0] / 2
			case i >= len(h.bounds):
				result[p] = h.max
			default:
				lower := h.bounds[i-1]
				upper := h.bounds[i]
				before := cumulative - c
				fraction := (rank - float64(before)) / float64(c)
				result[p] = lower + fraction*(upper-lower)
			}
			break
		}
	}

	return result
}

// Reset clears all histogram data.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = 0
	h.max = 0
	h.sampled = false
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Mean returns the mean of all observations, or 0 when empty.
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}
