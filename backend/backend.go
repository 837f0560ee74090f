// Package backend defines the render-backend contract (spec §4.5) and the
// factory/registry/selection machinery three concrete implementations plug
// into. Grounded on the teacher's hal/backends.go BackendFactory/
// RegisterBackendFactory/CreateBackend/SelectBestBackend pattern, generalized
// from GoGPU's native-API variants (Vulkan/Metal/DX12/GL) to this module's
// three offscreen targets (software raster, hardware GL, web GPU).
package backend

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dx8gl/dx8gl/framebuffer"
	"github.com/dx8gl/dx8gl/logging"
	"github.com/dx8gl/dx8gl/resultcode"
)

// Kind identifies one of the three render backends (spec §4.5's
// backend_kind()).
type Kind int

const (
	// KindSoftware is the CPU rasterizer.
	KindSoftware Kind = iota
	// KindHardwareGL is the OpenGL ES-2-compatible offscreen backend.
	KindHardwareGL
	// KindWebGPU is the WebGPU-backed offscreen backend.
	KindWebGPU
)

func (k Kind) String() string {
	switch k {
	case KindSoftware:
		return "software"
	case KindHardwareGL:
		return "hardwaregl"
	case KindWebGPU:
		return "webgpu"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// RenderBackend is the contract every implementation satisfies (spec §4.5).
// All methods are safe to call from the thread that created the backend
// unless individually documented otherwise.
type RenderBackend interface {
	// Initialize allocates all resources for a width x height color/depth
	// target. Safe to call once; a second call on a live backend is
	// defined per-implementation (web GPU treats it as a no-op success).
	Initialize(width, height int) error
	// MakeCurrent binds this backend's context for rendering. Software and
	// web GPU backends treat this as a no-op after a successful Initialize.
	// Hardware GL binds its context on the backend's own dedicated render
	// thread, not on the calling thread.
	MakeCurrent() error
	// GetFramebuffer returns the most recent color-buffer contents,
	// ensuring any outstanding GPU work affecting it has completed. Returns
	// nil before a successful Initialize; the web GPU backend also returns
	// nil when its readback fails or times out.
	GetFramebuffer() *framebuffer.Framebuffer
	// Resize destroys and recreates the color, depth, and readback
	// resources at the new size. A no-op if dimensions already match.
	Resize(width, height int) error
	// Shutdown releases all resources. Idempotent.
	Shutdown()
	// Kind identifies this backend.
	Kind() Kind
	// HasExtension is a feature query; always false on backends with no
	// extension model.
	HasExtension(name string) bool
}

// Factory constructs a fresh, uninitialized RenderBackend instance.
type Factory func() RenderBackend

var (
	mu        sync.RWMutex
	factories = make(map[Kind]Factory)
)

// Register installs a factory for kind. Called from each backend
// subpackage's init(), mirroring the teacher's RegisterBackendFactory.
func Register(kind Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

func factoryFor(kind Kind) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}

// defaultPriority is the order "default" selection tries backends in (spec
// §4.5: "try web GPU, then hardware GL, then software raster").
var defaultPriority = []Kind{KindWebGPU, KindHardwareGL, KindSoftware}

// EnvOverrideVar is the environment variable consulted for a forced backend
// choice (spec §6). Recognized values: "osmesa" selects software raster,
// "egl" selects hardware GL, "webgpu" selects web GPU, "auto" or unset
// defers to normal selection precedence.
const EnvOverrideVar = "DX8GL_BACKEND"

// ParseKindName maps a selection-override string to a Kind. Accepts the
// spec's own vocabulary alongside this module's Kind names so that
// DX8GL_BACKEND=osmesa and DX8GL_BACKEND=software both force the software
// backend, and DX8GL_BACKEND=egl, hardwaregl or gl all force the GL backend.
func ParseKindName(name string) (Kind, bool) {
	switch name {
	case "software", "osmesa":
		return KindSoftware, true
	case "hardwaregl", "egl", "gl":
		return KindHardwareGL, true
	case "webgpu":
		return KindWebGPU, true
	default:
		return 0, false
	}
}

// Config selects a backend. An empty Config is normal "default" selection
// (try web GPU, then hardware GL, then software raster). Setting Forced
// requests exactly one backend and fails rather than falling back if it
// cannot initialize (spec §4.5's "an unavailable forced backend fails
// cleanly rather than silently falling back").
type Config struct {
	Forced   Kind
	IsForced bool
}

// ConfigFromEnv builds a Config from the DX8GL_BACKEND environment variable,
// following spec §6's environment-then-flag-then-config precedence: this is
// the lowest-priority source and callers should let an explicit flag or
// config value override it before calling Select. An unrecognized value
// falls back to "auto" and logs a warning (spec §6).
func ConfigFromEnv() Config {
	v := os.Getenv(EnvOverrideVar)
	if v == "" || v == "auto" {
		return Config{}
	}
	if k, ok := ParseKindName(v); ok {
		return Config{Forced: k, IsForced: true}
	}
	logging.Logger().Warn("unrecognized "+EnvOverrideVar+" value, falling back to auto", "value", v)
	return Config{}
}

// ConfigFromFlag builds a Config from a "--backend=<name>" command-line
// argument (spec §6), searching args for the first such entry. Unrecognized
// names fall back to "auto" with a warning, same as ConfigFromEnv.
func ConfigFromFlag(args []string) Config {
	const prefix = "--backend="
	for _, a := range args {
		if !strings.HasPrefix(a, prefix) {
			continue
		}
		v := a[len(prefix):]
		if v == "" || v == "auto" {
			return Config{}
		}
		if k, ok := ParseKindName(v); ok {
			return Config{Forced: k, IsForced: true}
		}
		logging.Logger().Warn("unrecognized --backend value, falling back to auto", "value", v)
		return Config{}
	}
	return Config{}
}

// Resolve combines the three selection sources in spec §6's precedence
// order — environment, then command-line flag, then an explicit
// configuration-struct override — with each later source overriding an
// earlier one only when it actually forces a backend.
func Resolve(args []string, structOverride *Config) Config {
	cfg := ConfigFromEnv()
	if flagCfg := ConfigFromFlag(args); flagCfg.IsForced {
		cfg = flagCfg
	}
	if structOverride != nil && structOverride.IsForced {
		cfg = *structOverride
	}
	return cfg
}

// Select instantiates, initializes, and returns a backend per cfg. Forced
// selection tries exactly one Kind and returns its error verbatim on
// failure — no fallback. Default selection tries web GPU, then hardware GL,
// then software raster, returning the first that initializes; if every
// candidate fails, the last error observed is returned.
func Select(cfg Config, width, height int) (RenderBackend, error) {
	if cfg.IsForced {
		return selectOne(cfg.Forced, width, height)
	}

	var lastErr error
	for _, kind := range defaultPriority {
		b, err := selectOne(kind, width, height)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = resultcode.New(resultcode.NotAvailable, "backend: select", "no backends registered")
	}
	return nil, lastErr
}

func selectOne(kind Kind, width, height int) (RenderBackend, error) {
	factory, ok := factoryFor(kind)
	if !ok {
		return nil, resultcode.New(resultcode.NotAvailable, "backend: select",
			fmt.Sprintf("no factory registered for %s", kind))
	}
	b := factory()
	if err := b.Initialize(width, height); err != nil {
		return nil, err
	}
	return b, nil
}

// Registered reports whether a factory is installed for kind, without
// constructing or initializing a backend (spec §4.5's probing use case —
// e.g. a caller deciding whether forcing web GPU is even worth attempting).
func Registered(kind Kind) bool {
	_, ok := factoryFor(kind)
	return ok
}
