// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/store"
)

// Report contains precomputed data for history rendering.
type Report struct {
	Sessions []model.SessionAggregate
	KeyAggs  []model.KeyAggregate
}

// BuildReport loads and prepares data for history rendering. Key failures
// are counted over sessions that ran, so errored sessions do not dilute the
// failure rate.
func BuildReport(ctx context.Context, st *store.Store, cfg model.HistoryConfig) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	keyAggs, err := st.ListKeyAggregates(ctx, ranSessionIDs(sessions))
	if err != nil {
		return Report{}, err
	}
	return Report{
		Sessions: sessions,
		KeyAggs:  keyAggs,
	}, nil
}

func ranSessionIDs(sessions []model.SessionAggregate) []int64 {
	ids := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == model.StatusErrored {
			continue
		}
		ids = append(ids, s.SessionID)
	}
	return ids
}
