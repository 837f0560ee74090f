// Package hardwaregl implements the hardware-accelerated OpenGL render
// backend (spec §4.5): an off-screen GL context rendering into a
// framebuffer object, read back with a blocking pixel transfer. Grounded on
// _examples/soypat-glgl's v4.6-core/glgl/glfw33.go InitWithCurrentWindow33
// pattern for GLFW window/context setup, and on internal/thread.RenderLoop
// (itself grounded on Ebitengine's dedicated render-thread architecture)
// for binding the GL context to one fixed OS thread and passing Resize
// requests through its pending-resize slot.
package hardwaregl

import (
	"sync"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/dx8gl/dx8gl/backend"
	"github.com/dx8gl/dx8gl/framebuffer"
	"github.com/dx8gl/dx8gl/internal/thread"
	"github.com/dx8gl/dx8gl/logging"
	"github.com/dx8gl/dx8gl/resultcode"
)

func init() {
	backend.Register(backend.KindHardwareGL, func() backend.RenderBackend { return New() })
}

const stagePrefix = "backend/hardwaregl: "

// Backend is the hardware GL render backend. All GL and GLFW calls run on
// the render loop's single dedicated OS thread, since GL contexts are
// thread-affine and GLFW's window/event calls must stay on the thread that
// created them.
type Backend struct {
	mu sync.Mutex
	rl *thread.RenderLoop

	window *glfw.Window
	width  int
	height int

	fbo        uint32
	colorTex   uint32
	depthRB    uint32
	extensions map[string]bool

	fb *framebuffer.Framebuffer
}

// New constructs an uninitialized hardware GL backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Initialize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rl = thread.NewRenderLoop()
	var initErr error
	b.rl.RunOnRenderThreadVoid(func() {
		if err := glfw.Init(); err != nil {
			initErr = resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"display", "glfw.Init failed", err)
			return
		}

		if width <= 0 || height <= 0 {
			initErr = resultcode.New(resultcode.InvalidCall, stagePrefix+"config", "width and height must be positive")
			return
		}

		win, err := b.createSurface(width, height)
		if err != nil {
			initErr = err
			return
		}
		b.window = win
		win.MakeContextCurrent()

		if err := gl.Init(); err != nil {
			initErr = resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"context", "gl.Init failed", err)
			return
		}

		b.width, b.height = width, height
		b.createFBO(width, height)
		b.loadExtensions()
	})
	if initErr != nil {
		b.rl.Stop()
		b.rl = nil
		return initErr
	}

	fb, err := framebuffer.New(width, height, framebuffer.RGBA8, 1, true)
	if err != nil {
		b.rl.Stop()
		b.rl = nil
		return resultcode.Wrap(resultcode.InvalidCall, stagePrefix+"framebuffer", "framebuffer allocation rejected", err)
	}
	b.fb = fb
	logging.Logger().Info("hardwaregl backend initialized", "width", width, "height", height)
	return nil
}

// createSurface attempts, in order, a hidden (surfaceless-style) window, a
// 1x1 pbuffer-equivalent hidden window, and finally a visible window —
// spec §4.5's "surfaceless extension, or falls back to a 1x1 pbuffer or
// window surface". GLFW itself has no surfaceless/pbuffer API distinct from
// a window, so the first two attempts both create a hidden window and
// differ only in the requested size; a real EGL-surfaceless implementation
// would replace just this function.
func (b *Backend) createSurface(width, height int) (*glfw.Window, error) {
	attempts := []struct {
		name   string
		w, h   int
		hidden bool
	}{
		{"surfaceless", width, height, true},
		{"pbuffer", 1, 1, true},
		{"window", width, height, false},
	}

	var lastErr error
	for _, a := range attempts {
		glfw.WindowHint(glfw.ContextVersionMajor, 3)
		glfw.WindowHint(glfw.ContextVersionMinor, 3)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		glfw.WindowHint(glfw.DepthBits, 24)
		glfw.WindowHint(glfw.StencilBits, 8)
		glfw.WindowHint(glfw.Visible, glfw.False)
		if !a.hidden {
			glfw.WindowHint(glfw.Visible, glfw.True)
		}

		win, err := glfw.CreateWindow(a.w, a.h, "dx8gl", nil, nil)
		if err == nil {
			return win, nil
		}
		lastErr = err
	}
	return nil, resultcode.Wrap(resultcode.NotAvailable, stagePrefix+"surface",
		"no surfaceless, pbuffer, or window surface could be created", lastErr)
}

func (b *Backend) createFBO(width, height int) {
	gl.GenFramebuffers(1, &b.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)

	gl.GenTextures(1, &b.colorTex)
	gl.BindTexture(gl.TEXTURE_2D, b.colorTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, b.colorTex, 0)

	gl.GenRenderbuffers(1, &b.depthRB)
	gl.BindRenderbuffer(gl.RENDERBUFFER, b.depthRB)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH24_STENCIL8, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, gl.RENDERBUFFER, b.depthRB)

	gl.Viewport(0, 0, int32(width), int32(height))
}

func (b *Backend) destroyFBO() {
	if b.colorTex != 0 {
		gl.DeleteTextures(1, &b.colorTex)
		b.colorTex = 0
	}
	if b.depthRB != 0 {
		gl.DeleteRenderbuffers(1, &b.depthRB)
		b.depthRB = 0
	}
	if b.fbo != 0 {
		gl.DeleteFramebuffers(1, &b.fbo)
		b.fbo = 0
	}
}

func (b *Backend) loadExtensions() {
	b.extensions = make(map[string]bool)
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := int32(0); i < n; i++ {
		name := gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))
		b.extensions[name] = true
	}
}

// MakeCurrent actually invokes the platform context bind (spec §4.5:
// "hardware GL actually binds a display/context/surface triple"). The bind
// runs on the backend's dedicated render thread, not on the calling thread.
func (b *Backend) MakeCurrent() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rl == nil || b.window == nil {
		return resultcode.New(resultcode.InvalidCall, stagePrefix+"makecurrent", "backend not initialized")
	}
	b.rl.RunOnRenderThreadVoid(func() {
		b.window.MakeContextCurrent()
	})
	return nil
}

// GetFramebuffer reads back the color attachment via a blocking
// glReadPixels call into the CPU-visible framebuffer (spec §4.5).
func (b *Backend) GetFramebuffer() *framebuffer.Framebuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rl == nil {
		return nil
	}
	b.rl.RunOnRenderThreadVoid(func() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
		gl.Finish()
		gl.ReadPixels(0, 0, int32(b.width), int32(b.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(b.fb.Buffer()))
	})
	b.fb.CPUDirty = false
	b.fb.GPUDirty = false
	return b.fb
}

// Resize destroys and recreates the color, depth, and readback resources at
// the new size (spec §4.5). A no-op if dimensions already match. The request
// goes through the render loop's pending-resize slot and is applied on the
// render thread before Resize returns, so every call that changes the size
// recreates the FBO once.
func (b *Backend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rl == nil {
		return resultcode.New(resultcode.InvalidCall, stagePrefix+"resize", "backend not initialized")
	}
	if width == b.width && height == b.height {
		return nil
	}
	b.rl.RequestResize(uint32(width), uint32(height))
	b.rl.RunOnRenderThreadVoid(func() {
		w, h, ok := b.rl.ConsumePendingResize()
		if !ok {
			return
		}
		b.destroyFBO()
		b.createFBO(int(w), int(h))
		b.width, b.height = int(w), int(h)
	})
	b.fb.Resize(width, height)
	return nil
}

// Shutdown releases all GL resources and stops the dedicated context
// thread. Idempotent.
func (b *Backend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rl == nil {
		return
	}
	b.rl.RunOnRenderThreadVoid(func() {
		b.destroyFBO()
		if b.window != nil {
			b.window.Destroy()
		}
		glfw.Terminate()
	})
	b.rl.Stop()
	b.rl = nil
	b.window = nil
}

func (b *Backend) Kind() backend.Kind { return backend.KindHardwareGL }

// HasExtension reports whether the GL context reported name among its
// extension strings at initialization time.
func (b *Backend) HasExtension(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extensions[name]
}
