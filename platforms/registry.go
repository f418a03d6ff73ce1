package platforms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crosspost/config"
	"crosspost/types"
)

// ErrUnknownPlatform is returned by Get for an unregistered id.
var ErrUnknownPlatform = errors.New("unknown platform")

// ErrRuntimeAlreadySet guards the one-time runtime injection.
var ErrRuntimeAlreadySet = errors.New("runtime already set")

type factory func(Runtime) Adapter

type authEntry struct {
	result  types.AuthResult
	checked time.Time
}

// Registry owns the built-in adapters, keyed by platform id. Adapters are
// constructed lazily on first use, after SetRuntime has injected the shared
// capability object.
type Registry struct {
	mu        sync.Mutex
	runtime   Runtime
	order     []string
	factories map[string]factory
	adapters  map[string]Adapter
	meta      map[string]types.PlatformMeta
	authCache map[string]authEntry
	authTTL   time.Duration
}

// NewRegistry builds a registry with every built-in destination registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]factory),
		adapters:  make(map[string]Adapter),
		meta:      make(map[string]types.PlatformMeta),
		authCache: make(map[string]authEntry),
		authTTL:   config.AuthCacheTTL,
	}
	r.register(devtoMeta(), func(rt Runtime) Adapter { return NewDevto(rt) })
	r.register(mediumMeta(), func(rt Runtime) Adapter { return NewMedium(rt) })
	r.register(hashnodeMeta(), func(rt Runtime) Adapter { return NewHashnode(rt) })
	return r
}

func (r *Registry) register(meta types.PlatformMeta, f factory) {
	if _, dup := r.factories[meta.ID]; dup {
		panic(fmt.Sprintf("duplicate platform id %q", meta.ID))
	}
	r.order = append(r.order, meta.ID)
	r.factories[meta.ID] = f
	r.meta[meta.ID] = meta
}

// SetRuntime injects the shared capability object. Must be called exactly
// once before any adapter method runs.
func (r *Registry) SetRuntime(rt Runtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runtime != nil {
		return ErrRuntimeAlreadySet
	}
	r.runtime = rt
	return nil
}

// AllMeta returns the static metadata of every registered destination, in
// registration order.
func (r *Registry) AllMeta() []types.PlatformMeta {
	out := make([]types.PlatformMeta, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.meta[id])
	}
	return out
}

// Get resolves an adapter by id, constructing it on first use.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[id]; ok {
		return a, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, id)
	}
	if r.runtime == nil {
		return nil, errors.New("runtime not set")
	}
	a := f(r.runtime)
	r.adapters[id] = a
	return a, nil
}

// CheckAllAuth fans an auth probe out across every registered adapter.
// Probes run concurrently; one adapter's failure never affects another's
// result. Fresh results are served from a short-lived cache unless force
// is set.
func (r *Registry) CheckAllAuth(ctx context.Context, force bool) map[string]types.AuthResult {
	results := make(map[string]types.AuthResult, len(r.order))
	var pending []string

	r.mu.Lock()
	now := time.Now()
	for _, id := range r.order {
		if e, ok := r.authCache[id]; ok && !force && now.Sub(e.checked) < r.authTTL {
			results[id] = e.result
			continue
		}
		pending = append(pending, id)
	}
	r.mu.Unlock()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range pending {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			adapter, err := r.Get(id)
			var res types.AuthResult
			if err != nil {
				res = authFailure(err)
			} else {
				res = adapter.CheckAuth(ctx)
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()

			r.mu.Lock()
			r.authCache[id] = authEntry{result: res, checked: time.Now()}
			r.mu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}
