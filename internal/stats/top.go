// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/verte-zerg/keytest/internal/model"
)

// SortByFailure orders aggregates by failure rate, then count, then key.
func SortByFailure(aggs []model.KeyAggregate) []model.KeyAggregate {
	out := make([]model.KeyAggregate, len(aggs))
	copy(out, aggs)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := failureRate(out[i]), failureRate(out[j])
		if ri != rj {
			return ri > rj
		}
		if out[i].Failed != out[j].Failed {
			return out[i].Failed > out[j].Failed
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TopFailedKeys returns the n keys most often left unpressed.
func TopFailedKeys(aggs []model.KeyAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	sorted := SortByFailure(aggs)
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sorted[i].Key)
	}
	return out
}

func failureRate(agg model.KeyAggregate) float64 {
	if agg.Sessions == 0 {
		return 0
	}
	return float64(agg.Failed) / float64(agg.Sessions)
}
