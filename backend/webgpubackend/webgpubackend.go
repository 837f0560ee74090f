// Package webgpubackend implements the web-GPU render backend (spec §4.5):
// adapter -> device -> queue, a 2D render-attachment/copy-source color
// texture with a matching view, and a map-read readback buffer. Grounded on
// _examples/Carmen-Shannon-oxy-go's engine/renderer/wgpu_renderer_backend.go
// instance/adapter/device/queue setup, adapted from that renderer's
// on-screen surface model to this backend's fully offscreen one (no
// wgpu.Surface at all — just a render target texture read back through a
// staging buffer), and bounded with explicit timeouts per spec §5 rather
// than that renderer's panic-on-error startup.
package webgpubackend

import (
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/dx8gl/dx8gl/backend"
	"github.com/dx8gl/dx8gl/framebuffer"
	"github.com/dx8gl/dx8gl/resultcode"
)

func init() {
	backend.Register(backend.KindWebGPU, func() backend.RenderBackend { return New() })
}

const stagePrefix = "backend/webgpubackend: "

// adapterTimeout and deviceTimeout bound the asynchronous adapter/device
// request steps (spec §5: "bounded timeouts (5s adapter/device"). bufferMapTimeout
// bounds the asynchronous readback-buffer map request (spec §5: "100ms buffer map").
const (
	adapterTimeout   = 5 * time.Second
	deviceTimeout    = 5 * time.Second
	bufferMapTimeout = 100 * time.Millisecond
)

// Backend is the web-GPU render backend.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	colorTexture *wgpu.Texture
	colorView    *wgpu.TextureView
	readback     *wgpu.Buffer

	width, height int
	rowStride     uint32

	fb *framebuffer.Framebuffer

	initialized bool
}

// New constructs an uninitialized web-GPU backend.
func New() *Backend {
	return &Backend{}
}

// Initialize requests an adapter, device, and queue, then creates the color
// target and readback buffer. A second call on a live backend is a no-op
// returning success (spec §4.5).
func (b *Backend) Initialize(width, height int) error {
	if b.initialized {
		return nil
	}

	b.instance = wgpu.CreateInstance(nil)

	adapter, err := requestWithTimeout(adapterTimeout, func(done chan<- result[*wgpu.Adapter]) {
		a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		done <- result[*wgpu.Adapter]{a, err}
	})
	if err != nil {
		return resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"adapter", "adapter request failed or timed out", err)
	}
	b.adapter = adapter

	device, err := requestWithTimeout(deviceTimeout, func(done chan<- result[*wgpu.Device]) {
		d, err := b.adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "dx8gl device"})
		done <- result[*wgpu.Device]{d, err}
	})
	if err != nil {
		return resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"device", "device request failed or timed out", err)
	}
	b.device = device
	b.queue = b.device.GetQueue()

	if err := b.createTargets(width, height); err != nil {
		return err
	}

	fb, err := framebuffer.New(width, height, framebuffer.RGBA8, 1, true)
	if err != nil {
		return resultcode.Wrap(resultcode.InvalidCall, stagePrefix+"framebuffer", "framebuffer allocation rejected", err)
	}
	b.width, b.height = width, height
	b.fb = fb
	b.initialized = true
	return nil
}

// result pairs a value with an error for use across a timeout channel.
type result[T any] struct {
	val T
	err error
}

// requestWithTimeout runs fn (which must send exactly one result on done)
// and returns its value, or an error if the timeout elapses first. This
// module's web-GPU binding performs these requests synchronously under the
// hood; running them on a goroutine with a select lets a hung or
// slow-to-enumerate driver still surface as a clean timeout rather than an
// indefinite block (spec §5).
func requestWithTimeout[T any](timeout time.Duration, fn func(done chan<- result[T])) (T, error) {
	done := make(chan result[T], 1)
	go fn(done)
	select {
	case r := <-done:
		return r.val, r.err
	case <-time.After(timeout):
		var zero T
		return zero, errTimeout
	}
}

var errTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "timed out" }

func (b *Backend) createTargets(width, height int) error {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "dx8gl color target",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"texture", "color texture creation failed", err)
	}
	b.colorTexture = tex

	view, err := tex.CreateView(nil)
	if err != nil {
		return resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"textureview", "color texture view creation failed", err)
	}
	b.colorView = view

	// Readback rows must be padded to a 256-byte alignment per the WebGPU
	// copy-texture-to-buffer contract.
	const bpp = 4
	unpadded := uint32(width) * bpp
	b.rowStride = (unpadded + 255) / 256 * 256

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "dx8gl readback buffer",
		Size:             uint64(b.rowStride) * uint64(height),
		Usage:            wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		MappedAtCreation: false,
	})
	if err != nil {
		return resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"buffer", "readback buffer creation failed", err)
	}
	b.readback = buf
	return nil
}

func (b *Backend) destroyTargets() {
	if b.readback != nil {
		b.readback.Destroy()
		b.readback = nil
	}
	if b.colorTexture != nil {
		b.colorTexture.Destroy()
		b.colorTexture = nil
	}
	b.colorView = nil
}

// MakeCurrent is a no-op (spec §4.5: "software raster and web GPU treat
// this as a no-op after successful initialization").
func (b *Backend) MakeCurrent() error { return nil }

// GetFramebuffer copies the color texture into the readback buffer, maps it
// with a bounded poll, and copies the mapped range into the CPU-visible
// framebuffer through the framebuffer helper (spec §4.5).
func (b *Backend) GetFramebuffer() *framebuffer.Framebuffer {
	if !b.initialized {
		return nil
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: b.colorTexture},
		&wgpu.ImageCopyBuffer{
			Buffer: b.readback,
			Layout: wgpu.TextureDataLayout{
				BytesPerRow:  b.rowStride,
				RowsPerImage: uint32(b.height),
			},
		},
		&wgpu.Extent3D{Width: uint32(b.width), Height: uint32(b.height), DepthOrArrayLayers: 1},
	)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil
	}
	b.queue.Submit(cmd)

	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	b.readback.MapAsync(wgpu.MapModeRead, 0, uint64(b.rowStride)*uint64(b.height), func(status wgpu.BufferMapAsyncStatus) {
		mapped <- status
	})

	deadline := time.Now().Add(bufferMapTimeout)
	for time.Now().Before(deadline) {
		b.device.Poll(false, nil)
		select {
		case status := <-mapped:
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil
			}
			b.copyMappedRows()
			b.readback.Unmap()
			b.fb.CPUDirty = false
			b.fb.GPUDirty = false
			return b.fb
		default:
		}
	}
	// Timed out: spec §4.5 requires a clean failure return, not a hang.
	return nil
}

// copyMappedRows strips the WebGPU row-alignment padding on the way into
// the tightly-packed framebuffer buffer.
func (b *Backend) copyMappedRows() {
	mappedRange := b.readback.GetMappedRange(0, uint(b.rowStride)*uint(b.height))
	dst := b.fb.Buffer()
	rowBytes := b.width * 4
	for y := 0; y < b.height; y++ {
		src := mappedRange[y*int(b.rowStride) : y*int(b.rowStride)+rowBytes]
		copy(dst[y*rowBytes:(y+1)*rowBytes], src)
	}
}

// Resize destroys and recreates the color and readback resources at the new
// size (spec §4.5). A no-op if dimensions already match.
func (b *Backend) Resize(width, height int) error {
	if !b.initialized {
		return resultcode.New(resultcode.InvalidCall, stagePrefix+"resize", "backend not initialized")
	}
	if width == b.width && height == b.height {
		return nil
	}
	b.destroyTargets()
	if err := b.createTargets(width, height); err != nil {
		return err
	}
	b.width, b.height = width, height
	b.fb.Resize(width, height)
	return nil
}

// Shutdown releases all resources. Idempotent.
func (b *Backend) Shutdown() {
	if !b.initialized {
		return
	}
	b.destroyTargets()
	b.device = nil
	b.adapter = nil
	b.instance = nil
	b.initialized = false
}

func (b *Backend) Kind() backend.Kind { return backend.KindWebGPU }

// HasExtension reports whether the adapter's reported features include name.
func (b *Backend) HasExtension(name string) bool {
	if b.adapter == nil {
		return false
	}
	for _, f := range b.adapter.GetFeatures() {
		if f.String() == name {
			return true
		}
	}
	return false
}
