package device

import "sync"

// NameFunc queries the platform for the path of a device handle.
type NameFunc func(handle uintptr) (string, bool)

type record struct {
	path     string
	resolved bool
	internal bool
}

// Resolver caches device lookups for the lifetime of one session.
type Resolver struct {
	names     NameFunc
	whitelist Whitelist

	mu    sync.Mutex
	cache map[uintptr]record
}

// NewResolver returns a resolver backed by names.
func NewResolver(names NameFunc, whitelist Whitelist) *Resolver {
	return &Resolver{
		names:     names,
		whitelist: whitelist,
		cache:     map[uintptr]record{},
	}
}

// Resolve returns the device path for handle, or false if it has none.
// The first answer for a handle is kept.
func (r *Resolver) Resolve(handle uintptr) (string, bool) {
	rec := r.lookup(handle)
	return rec.path, rec.resolved
}

// IsInternal resolves handle and applies the whitelist. Devices without a
// path are never internal.
func (r *Resolver) IsInternal(handle uintptr) (string, bool) {
	rec := r.lookup(handle)
	return rec.path, rec.internal
}

func (r *Resolver) lookup(handle uintptr) record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.cache[handle]; ok {
		return rec
	}
	var rec record
	if r.names != nil {
		if path, ok := r.names(handle); ok && path != "" {
			rec.path = path
			rec.resolved = true
			rec.internal = r.whitelist.Match(path)
		}
	}
	r.cache[handle] = rec
	return rec
}
