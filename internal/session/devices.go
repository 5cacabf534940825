package session

import (
	"sync"

	"github.com/verte-zerg/keytest/internal/model"
)

// deviceLog counts events per device handle in first-seen order.
type deviceLog struct {
	mu    sync.Mutex
	order []uintptr
	stats map[uintptr]*model.DeviceStats
}

func newDeviceLog() *deviceLog {
	return &deviceLog{stats: map[uintptr]*model.DeviceStats{}}
}

func (d *deviceLog) count(handle uintptr, path string, internal bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.stats[handle]
	if !ok {
		st = &model.DeviceStats{Path: path, Internal: internal}
		d.stats[handle] = st
		d.order = append(d.order, handle)
	}
	if internal {
		st.Accepted++
	} else {
		st.Rejected++
	}
}

func (d *deviceLog) snapshot() []model.DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.order) == 0 {
		return nil
	}
	out := make([]model.DeviceStats, 0, len(d.order))
	for _, h := range d.order {
		out = append(out, *d.stats[h])
	}
	return out
}
