package cache

import "sync"

// PipelineKey identifies a constructed pipeline by its two shader modules
// plus a 64-bit hash folding in blend/depth/stencil/rasterizer/vertex-layout/
// primitive-topology state (spec §4.8). Two pipeline states that behave
// identically must hash identically; computing that hash is the caller's
// responsibility (typically the backend's state-snapshot type).
type PipelineKey struct {
	VertexModule   any
	FragmentModule any
	StateHash      uint64
}

// PipelineConstructFunc builds a backend pipeline object for a cache miss.
type PipelineConstructFunc func() (pipeline any, err error)

// PipelineCache maps PipelineKey to a constructed pipeline handle. Unlike
// ShaderCache, it never evicts: spec §4.8 notes pipelines are cheap in
// aggregate relative to shader modules, matching typical driver behavior.
type PipelineCache struct {
	mu      sync.RWMutex
	entries map[PipelineKey]any
}

// NewPipelineCache creates an empty pipeline cache.
func NewPipelineCache() *PipelineCache {
	return &PipelineCache{entries: make(map[PipelineKey]any)}
}

// GetOrConstruct returns the cached pipeline for key, constructing it via
// construct on a miss.
func (c *PipelineCache) GetOrConstruct(key PipelineKey, construct PipelineConstructFunc) (any, error) {
	c.mu.RLock()
	if p, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	p, err := construct()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = p
	return p, nil
}

// Len returns the number of constructed pipelines currently cached.
func (c *PipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
