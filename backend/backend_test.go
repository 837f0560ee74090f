package backend

import (
	"errors"
	"testing"

	"github.com/dx8gl/dx8gl/framebuffer"
	"github.com/dx8gl/dx8gl/resultcode"
)

// fakeBackend is a minimal RenderBackend used only to exercise selection
// logic without touching any real GPU or CPU rasterizer.
type fakeBackend struct {
	kind      Kind
	failInit  bool
	fb        *framebuffer.Framebuffer
	initCalls int
}

func (f *fakeBackend) Initialize(width, height int) error {
	f.initCalls++
	if f.failInit {
		return resultcode.New(resultcode.NotAvailable, "backend/fake: initialize", "forced failure")
	}
	fb, err := framebuffer.New(width, height, framebuffer.RGBA8, 1, true)
	if err != nil {
		return err
	}
	f.fb = fb
	return nil
}
func (f *fakeBackend) MakeCurrent() error                            { return nil }
func (f *fakeBackend) GetFramebuffer() *framebuffer.Framebuffer      { return f.fb }
func (f *fakeBackend) Resize(width, height int) error                { f.fb.Resize(width, height); return nil }
func (f *fakeBackend) Shutdown()                                     {}
func (f *fakeBackend) Kind() Kind                                     { return f.kind }
func (f *fakeBackend) HasExtension(name string) bool                  { return false }

func resetRegistry() {
	mu.Lock()
	defer mu.Unlock()
	factories = make(map[Kind]Factory)
}

func TestForcedUnavailableBackendFailsWithoutFallback(t *testing.T) {
	resetRegistry()
	defer resetRegistry()
	Register(KindWebGPU, func() RenderBackend { return &fakeBackend{kind: KindWebGPU, failInit: true} })
	Register(KindSoftware, func() RenderBackend { return &fakeBackend{kind: KindSoftware} })

	_, err := Select(Config{Forced: KindWebGPU, IsForced: true}, 64, 64)
	if err == nil {
		t.Fatal("expected forced selection of an unavailable backend to fail")
	}
	var rerr *resultcode.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected a *resultcode.Error, got %T: %v", err, err)
	}
	if rerr.Result != resultcode.NotAvailable {
		t.Fatalf("expected NotAvailable, got %v", rerr.Result)
	}
}

func TestAutoSelectionFallsThroughToNextAvailable(t *testing.T) {
	resetRegistry()
	defer resetRegistry()
	Register(KindWebGPU, func() RenderBackend { return &fakeBackend{kind: KindWebGPU, failInit: true} })
	Register(KindHardwareGL, func() RenderBackend { return &fakeBackend{kind: KindHardwareGL, failInit: true} })
	Register(KindSoftware, func() RenderBackend { return &fakeBackend{kind: KindSoftware} })

	b, err := Select(Config{}, 64, 64)
	if err != nil {
		t.Fatalf("expected auto selection to succeed by falling through: %v", err)
	}
	if b.Kind() != KindSoftware {
		t.Fatalf("expected fallthrough to software, got %v", b.Kind())
	}
}

func TestConfigFromEnvParsesForcedBackend(t *testing.T) {
	t.Setenv(EnvOverrideVar, "osmesa")
	cfg := ConfigFromEnv()
	if !cfg.IsForced || cfg.Forced != KindSoftware {
		t.Fatalf("expected osmesa to force software, got %+v", cfg)
	}

	t.Setenv(EnvOverrideVar, "auto")
	cfg = ConfigFromEnv()
	if cfg.IsForced {
		t.Fatalf("expected auto to not force a backend, got %+v", cfg)
	}
}

func TestConfigFromFlagParsesForcedBackend(t *testing.T) {
	cfg := ConfigFromFlag([]string{"--other=1", "--backend=webgpu"})
	if !cfg.IsForced || cfg.Forced != KindWebGPU {
		t.Fatalf("expected --backend=webgpu to force KindWebGPU, got %+v", cfg)
	}
}

func TestResolvePrecedenceStructOverridesFlagOverridesEnv(t *testing.T) {
	t.Setenv(EnvOverrideVar, "osmesa")

	cfg := Resolve([]string{"--backend=webgpu"}, nil)
	if cfg.Forced != KindWebGPU {
		t.Fatalf("expected flag to override env, got %+v", cfg)
	}

	structCfg := Config{Forced: KindSoftware, IsForced: true}
	cfg = Resolve([]string{"--backend=webgpu"}, &structCfg)
	if cfg.Forced != KindSoftware {
		t.Fatalf("expected struct override to win over flag and env, got %+v", cfg)
	}
}

func TestRegisteredReportsFactoryPresence(t *testing.T) {
	resetRegistry()
	defer resetRegistry()
	if Registered(KindSoftware) {
		t.Fatal("expected no factory registered yet")
	}
	Register(KindSoftware, func() RenderBackend { return &fakeBackend{kind: KindSoftware} })
	if !Registered(KindSoftware) {
		t.Fatal("expected factory to be registered")
	}
}
