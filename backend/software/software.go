// Package software adapts the CPU rasterizer in backend/software/raster to
// the backend.RenderBackend contract (spec §4.5's "software raster"
// implementation): a process-wide offscreen context sized to the initial
// framebuffer, whose "present" is a synchronous CPU buffer copy.
package software

import (
	"sync"

	"github.com/dx8gl/dx8gl/backend"
	"github.com/dx8gl/dx8gl/backend/software/raster"
	"github.com/dx8gl/dx8gl/framebuffer"
	"github.com/dx8gl/dx8gl/logging"
	"github.com/dx8gl/dx8gl/resultcode"
)

func init() {
	backend.Register(backend.KindSoftware, func() backend.RenderBackend { return New() })
}

// Backend is the software-raster render backend. It owns a raster.Pipeline
// and mirrors its color buffer into a framebuffer.Framebuffer on every
// GetFramebuffer call, matching spec §4.5's "ensures any outstanding GPU
// work ... has completed and the CPU mirror reflects it" — trivially true
// here since the rasterizer already runs on the CPU.
type Backend struct {
	mu       sync.Mutex
	pipeline *raster.Pipeline
	fb       *framebuffer.Framebuffer
}

// New constructs an uninitialized software backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Initialize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fb, err := framebuffer.New(width, height, framebuffer.RGBA8, 1, true)
	if err != nil {
		return resultcode.Wrap(resultcode.InvalidCall, "backend/software: initialize", "framebuffer allocation rejected", err)
	}
	b.pipeline = raster.NewPipeline(width, height)
	b.fb = fb
	logging.Logger().Info("software backend initialized", "width", width, "height", height)
	return nil
}

// MakeCurrent is a no-op after a successful Initialize (spec §4.5: "software
// raster and web GPU treat this as a no-op").
func (b *Backend) MakeCurrent() error { return nil }

// GetFramebuffer copies the rasterizer's color buffer into the CPU-visible
// framebuffer and returns it. The copy is the backend's "present."
func (b *Backend) GetFramebuffer() *framebuffer.Framebuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pipeline == nil {
		return nil
	}
	copy(b.fb.Buffer(), b.pipeline.GetColorBuffer())
	b.fb.CPUDirty = false
	b.fb.GPUDirty = false
	return b.fb
}

func (b *Backend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fb.Width == width && b.fb.Height == height {
		return nil
	}
	b.pipeline.Resize(width, height)
	b.fb.Resize(width, height)
	return nil
}

func (b *Backend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipeline = nil
	b.fb = nil
}

func (b *Backend) Kind() backend.Kind { return backend.KindSoftware }

// HasExtension is always false: the software rasterizer has no extension
// model (spec §4.5).
func (b *Backend) HasExtension(name string) bool { return false }

// Pipeline exposes the underlying raster.Pipeline's color buffer to a
// caller that wants to write directly into the CPU-resident target before
// the next Present, rather than going through the GPU-present path the
// hardware and web-GPU backends require.
func (b *Backend) Pipeline() *raster.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipeline
}
