// Package cache implements the shader module cache and pipeline cache of
// spec §4.7/§4.8: content-addressed, LRU-evicted, disk-persistable stores
// sitting between the shader emitters and a RenderBackend's module/pipeline
// construction calls. The LRU bookkeeping (map + container/list, atomic
// stat counters, evict-until-size-or-count loop) is grounded on the
// teacher pack's gogpu-gg scene.LayerCache (_examples/gogpu-gg/scene/cache.go),
// generalized from a single memory budget to the shader cache's
// count-based LRU (spec invariant 8: "cache is at capacity C").
package cache

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ShaderKind tags a cached module's stage, matching the on-disk kind word of
// spec §6 ("0 = vertex, 1 = fragment, 2 = compute").
type ShaderKind uint32

const (
	KindVertexModule ShaderKind = iota
	KindFragmentModule
	KindComputeModule
)

// ShaderKey is the (kind, source-hash, state-flags) triple spec §4.7 keys
// shader modules on. Hash is computed by the caller from the translated
// source text only; Flags further qualifies identical source under
// different synthesis modes (e.g. fixed-function configuration bits).
type ShaderKey struct {
	Kind  ShaderKind
	Hash  uint64
	Flags uint32
}

// CompileFunc compiles source into a backend-opaque module handle. It is
// invoked only on a cache miss.
type CompileFunc func(source string) (module any, err error)

type shaderEntry struct {
	key      ShaderKey
	module   any
	source   string
	lastUsed time.Time
	useCount uint64
	element  *list.Element
}

// ShaderStats mirrors spec §4.7's "total entries, hits, misses, total
// compilations, cumulative compile time, estimated bytes".
type ShaderStats struct {
	Entries         int
	Hits            uint64
	Misses          uint64
	Compilations    uint64
	CompileTime     time.Duration
	EstimatedBytes  int64
}

// ShaderCache is the LRU-evicted, count-bounded shader module cache of
// spec §4.7.
type ShaderCache struct {
	mu       sync.RWMutex
	entries  map[ShaderKey]*shaderEntry
	lru      *list.List
	capacity int // 0 means unbounded

	hits         atomic.Uint64
	misses       atomic.Uint64
	compilations atomic.Uint64
	compileTime  atomic.Int64 // nanoseconds
	estBytes     atomic.Int64
}

// NewShaderCache creates a cache bounded to capacity distinct entries.
// capacity <= 0 means unbounded (no eviction).
func NewShaderCache(capacity int) *ShaderCache {
	return &ShaderCache{
		entries:  make(map[ShaderKey]*shaderEntry),
		lru:      list.New(),
		capacity: capacity,
	}
}

// GetOrCompile returns the cached module for key, compiling via compile on
// a miss (spec §4.7: "lookup that hits updates last-access and increments
// the counter; lookup that misses compiles ... and inserts the result").
func (c *ShaderCache) GetOrCompile(key ShaderKey, source string, compile CompileFunc) (any, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.lru.MoveToFront(entry.element)
		entry.lastUsed = time.Now()
		entry.useCount++
		module := entry.module
		c.mu.Unlock()
		c.hits.Add(1)
		return module, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	start := time.Now()
	module, err := compile(source)
	elapsed := time.Since(start)
	c.compileTime.Add(int64(elapsed))
	c.compilations.Add(1)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have inserted the same key while compile ran; the
	// single-threaded scheduling model (spec §5) makes this unreachable in
	// practice, but stay deterministic rather than silently racing.
	if entry, ok := c.entries[key]; ok {
		c.lru.MoveToFront(entry.element)
		entry.lastUsed = time.Now()
		entry.useCount++
		return entry.module, nil
	}

	entry := &shaderEntry{key: key, module: module, source: source, lastUsed: time.Now(), useCount: 1}
	entry.element = c.lru.PushFront(entry)
	c.entries[key] = entry
	c.estBytes.Add(int64(len(source)))

	if c.capacity > 0 {
		for len(c.entries) > c.capacity {
			oldest := c.lru.Back()
			if oldest == nil {
				break
			}
			old := oldest.Value.(*shaderEntry)
			c.lru.Remove(oldest)
			delete(c.entries, old.key)
			c.estBytes.Add(-int64(len(old.source)))
		}
	}
	return module, nil
}

// Invalidate removes a single key, if present.
func (c *ShaderCache) Invalidate(key ShaderKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		c.lru.Remove(entry.element)
		delete(c.entries, key)
		c.estBytes.Add(-int64(len(entry.source)))
	}
}

// Stats reports the counters spec §4.7 requires.
func (c *ShaderCache) Stats() ShaderStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return ShaderStats{
		Entries:        n,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Compilations:   c.compilations.Load(),
		CompileTime:    time.Duration(c.compileTime.Load()),
		EstimatedBytes: c.estBytes.Load(),
	}
}

const shaderCacheVersion uint32 = 1

// SavePersistent serializes the cache to the versioned binary format of
// spec §6: version word, entry-count word, then per entry a key record
// (kind, flags, hash-length, hash bytes) and a payload record (source
// length, source bytes). Module handles are not persisted; Load recompiles
// every entry through the backend.
func (c *ShaderCache) SavePersistent(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := writeU32(w, shaderCacheVersion); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(c.entries))); err != nil {
		return err
	}
	for key, entry := range c.entries {
		hashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(hashBytes, key.Hash)
		if err := writeU32(w, uint32(key.Kind)); err != nil {
			return err
		}
		if err := writeU32(w, key.Flags); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(hashBytes))); err != nil {
			return err
		}
		if _, err := w.Write(hashBytes); err != nil {
			return err
		}
		src := []byte(entry.source)
		if err := writeU32(w, uint32(len(src))); err != nil {
			return err
		}
		if _, err := w.Write(src); err != nil {
			return err
		}
	}
	return nil
}

// LoadPersistent reads the format SavePersistent wrote and recompiles every
// entry through compile. An entry whose recompilation fails is skipped;
// this never fails the overall load (spec §4.7, §7 "cache load failure").
// A missing stream loads nothing; a truncated stream keeps the entries read
// before the truncation point. Neither is an error.
func (c *ShaderCache) LoadPersistent(r io.Reader, compile CompileFunc) error {
	version, err := readU32(r)
	if err != nil {
		return nil // missing/unreadable: empty cache, not an error
	}
	if version != shaderCacheVersion {
		return fmt.Errorf("cache: unsupported shader cache version %d", version)
	}
	count, err := readU32(r)
	if err != nil {
		return nil
	}
	for i := uint32(0); i < count; i++ {
		kindW, err := readU32(r)
		if err != nil {
			return nil
		}
		flags, err := readU32(r)
		if err != nil {
			return nil
		}
		hashLen, err := readU32(r)
		if err != nil {
			return nil
		}
		hashBytes := make([]byte, hashLen)
		if _, err := io.ReadFull(r, hashBytes); err != nil {
			return nil
		}
		srcLen, err := readU32(r)
		if err != nil {
			return nil
		}
		srcBytes := make([]byte, srcLen)
		if _, err := io.ReadFull(r, srcBytes); err != nil {
			return nil
		}

		var hash uint64
		if len(hashBytes) >= 8 {
			hash = binary.LittleEndian.Uint64(hashBytes)
		}
		key := ShaderKey{Kind: ShaderKind(kindW), Hash: hash, Flags: flags}
		module, err := compile(string(srcBytes))
		if err != nil {
			continue // skip entries that fail to recompile
		}
		c.mu.Lock()
		entry := &shaderEntry{key: key, module: module, source: string(srcBytes), lastUsed: time.Now(), useCount: 0}
		entry.element = c.lru.PushFront(entry)
		c.entries[key] = entry
		c.estBytes.Add(int64(len(srcBytes)))
		c.mu.Unlock()
	}
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
