package webgpubackend

import (
	"testing"

	"github.com/dx8gl/dx8gl/backend"
)

// A real adapter/device is required for these to run; in an environment
// with no WebGPU-capable driver, Initialize returns a clean NotAvailable
// error within the bounded timeout and the test skips, matching the
// hardwaregl package's own headless-skip pattern.

func TestInitializeRequestsAdapterAndDeviceOrSkips(t *testing.T) {
	b := New()
	if err := b.Initialize(32, 32); err != nil {
		t.Skipf("webgpubackend.Initialize failed (no WebGPU driver?): %v", err)
	}
	defer b.Shutdown()

	if b.Kind() != backend.KindWebGPU {
		t.Fatalf("got %v, want KindWebGPU", b.Kind())
	}
}

func TestSecondInitializeIsNoop(t *testing.T) {
	b := New()
	if err := b.Initialize(16, 16); err != nil {
		t.Skipf("webgpubackend.Initialize failed (no WebGPU driver?): %v", err)
	}
	defer b.Shutdown()
	if err := b.Initialize(16, 16); err != nil {
		t.Fatalf("expected second Initialize on a live backend to be a no-op success, got: %v", err)
	}
}

func TestResizeBeforeInitializeFails(t *testing.T) {
	b := New()
	if err := b.Resize(8, 8); err == nil {
		t.Fatal("expected Resize on an uninitialized backend to fail")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	b := New()
	if err := b.Initialize(8, 8); err != nil {
		t.Skipf("webgpubackend.Initialize failed (no WebGPU driver?): %v", err)
	}
	b.Shutdown()
	b.Shutdown()
}
