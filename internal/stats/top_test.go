package stats

import (
	"testing"

	"github.com/verte-zerg/keytest/internal/model"
)

func TestTopFailedKeys(t *testing.T) {
	aggs := []model.KeyAggregate{
		{Key: "B", Failed: 1, Sessions: 4},
		{Key: "F12", Failed: 3, Sessions: 4},
		{Key: "A", Failed: 1, Sessions: 4},
	}
	top := TopFailedKeys(aggs, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(top))
	}
	if top[0] != "F12" || top[1] != "A" {
		t.Fatalf("unexpected order: %v", top)
	}
	if got := TopFailedKeys(aggs, 0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}
