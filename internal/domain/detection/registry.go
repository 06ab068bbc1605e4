package detection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
	"github.com/mcp-scooter/toolbridge/internal/logger"
	"github.com/mcp-scooter/toolbridge/internal/telemetry"
)

// DefaultTTL is how long a detection is served from cache.
const DefaultTTL = 60 * time.Second

// Registry maps tool names to detectors and caches their results. The TTL
// is a hint against thrashing; callers that need a fresh result Clear first.
type Registry struct {
	ttl     time.Duration
	now     func() time.Time
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	detectors map[string]Detector
	order     []string
	cache     map[string]CachedDetection
}

// NewRegistry creates a registry holding detectors. A non-positive ttl
// selects DefaultTTL.
func NewRegistry(ttl time.Duration, detectors ...Detector) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		ttl:       ttl,
		now:       time.Now,
		detectors: make(map[string]Detector),
		cache:     make(map[string]CachedDetection),
	}
	for _, d := range detectors {
		r.Register(d)
	}
	return r
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetMetrics attaches metrics; nil disables them.
func (r *Registry) SetMetrics(m *telemetry.Metrics) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
}

// TTL returns the cache lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Register adds or replaces a detector and drops its cached result.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if _, exists := r.detectors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.detectors[name] = d
	delete(r.cache, name)
}

// Unregister removes a detector and its cached result.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detectors[name]; !ok {
		return
	}
	delete(r.detectors, name)
	delete(r.cache, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Detector returns the detector registered under name.
func (r *Registry) Detector(name string) (Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	if !ok {
		return nil, unknownTool(name)
	}
	return d, nil
}

// Detect returns the cached detection for name when younger than the TTL
// and runs the detector otherwise. A detector failure is returned as an
// uncached ToolInfo with Error set; only an unknown name is an error.
func (r *Registry) Detect(ctx context.Context, name string) (Detection, error) {
	r.mu.RLock()
	d, ok := r.detectors[name]
	cached, hit := r.cache[name]
	now, metrics := r.now(), r.metrics
	r.mu.RUnlock()

	if !ok {
		return Detection{}, unknownTool(name)
	}
	if hit && now.Sub(cached.TakenAt) < r.ttl {
		metrics.ObserveCache(name, true)
		return Detection{ToolInfo: cached.Info, TakenAt: cached.TakenAt}, nil
	}
	metrics.ObserveCache(name, false)

	info, err := d.Detect(ctx)
	if err != nil {
		metrics.ObserveDetection(name, "error")
		logger.Warnf("Detection of %s failed: %v", name, err)
		return Detection{
			ToolInfo: ToolInfo{Name: name, Error: fmt.Sprintf("detection failed: %v", err)},
			TakenAt:  r.clock(),
		}, nil
	}
	info.Name = name

	result := "missing"
	if info.Installed {
		result = "installed"
	}
	metrics.ObserveDetection(name, result)

	entry := CachedDetection{Info: info, TakenAt: r.clock()}
	r.mu.Lock()
	// The detector may have been replaced while it ran.
	if r.detectors[name] == d {
		r.cache[name] = entry
	}
	r.mu.Unlock()

	return Detection{ToolInfo: entry.Info, TakenAt: entry.TakenAt}, nil
}

// DetectAll detects every registered tool in parallel. Failures are
// isolated per tool; cancelling ctx cancels every outstanding detection.
func (r *Registry) DetectAll(ctx context.Context) map[string]Detection {
	names := r.Names()
	results := make([]Detection, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			det, err := r.Detect(gctx, name)
			if err != nil {
				// Unregistered while the batch ran.
				det = Detection{ToolInfo: ToolInfo{Name: name, Error: err.Error()}, TakenAt: r.clock()}
			}
			results[i] = det
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Detection, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// Clear drops the cached result for name.
func (r *Registry) Clear(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detectors[name]; !ok {
		return unknownTool(name)
	}
	delete(r.cache, name)
	return nil
}

// ClearAll drops every cached result.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.cache = make(map[string]CachedDetection)
	r.mu.Unlock()
}

// InstallationInstructions returns the detector's static install text.
func (r *Registry) InstallationInstructions(name string) (string, error) {
	d, err := r.Detector(name)
	if err != nil {
		return "", err
	}
	return d.InstallationInstructions(), nil
}

// Cached returns the cache entries, for diagnostics, sorted by name.
func (r *Registry) Cached() []CachedDetection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CachedDetection, 0, len(r.cache))
	for _, c := range r.cache {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.Name < out[j].Info.Name })
	return out
}

func (r *Registry) clock() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now()
}

func unknownTool(name string) error {
	return apperr.New(apperr.KindUnknownTool, "no detector registered for %q", name).WithTool(name)
}

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide registry set by SetDefault, or nil.
func Default() *Registry { return defaultRegistry.Load() }

// SetDefault installs r as the process-wide registry.
func SetDefault(r *Registry) { defaultRegistry.Store(r) }
