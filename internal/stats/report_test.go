package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "keytest.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	results := []model.Result{
		{Status: model.StatusAborted, FailedKeys: []string{"F12", "NUM ENTER"}},
		{Status: model.StatusErrored, Error: "register raw input: access denied"},
		{Status: model.StatusAborted, FailedKeys: []string{"NUM ENTER"}},
		{Status: model.StatusPassed},
	}
	var ids []int64
	for i, r := range results {
		r.StartedAt = time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		r.EndedAt = r.StartedAt.Add(30 * time.Second)
		r.Layout = "laptop"
		r.TotalKeys = 96
		id, err := st.InsertResult(ctx, r)
		if err != nil {
			t.Fatalf("insert result: %v", err)
		}
		ids = append(ids, id)
	}

	report, err := BuildReport(ctx, st, model.HistoryConfig{Last: 3})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != ids[1] || report.Sessions[2].SessionID != ids[3] {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if len(report.KeyAggs) != 1 {
		t.Fatalf("expected only NUM ENTER in window, got %+v", report.KeyAggs)
	}
	agg := report.KeyAggs[0]
	if agg.Key != "NUM ENTER" || agg.Failed != 1 || agg.Sessions != 2 {
		t.Fatalf("errored sessions must not count: %+v", agg)
	}
}
