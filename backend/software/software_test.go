package software

import (
	"testing"

	"github.com/dx8gl/dx8gl/backend"
)

func TestInitializeThenGetFramebufferReturnsSizedBuffer(t *testing.T) {
	b := New()
	if err := b.Initialize(16, 8); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	fb := b.GetFramebuffer()
	if fb == nil {
		t.Fatal("expected a framebuffer after initialize")
	}
	if fb.Width != 16 || fb.Height != 8 {
		t.Fatalf("got %dx%d, want 16x8", fb.Width, fb.Height)
	}
}

func TestGetFramebufferBeforeInitializeReturnsNil(t *testing.T) {
	b := New()
	if fb := b.GetFramebuffer(); fb != nil {
		t.Fatal("expected nil framebuffer before Initialize")
	}
}

func TestResizeToSameDimensionsIsNoop(t *testing.T) {
	b := New()
	_ = b.Initialize(4, 4)
	before := b.GetFramebuffer().Buffer()
	if err := b.Resize(4, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	after := b.GetFramebuffer().Buffer()
	if &before[0] != &after[0] {
		t.Fatal("expected same-size resize to leave the buffer untouched")
	}
}

func TestKindIsSoftware(t *testing.T) {
	b := New()
	if b.Kind() != backend.KindSoftware {
		t.Fatalf("got %v, want KindSoftware", b.Kind())
	}
}

func TestHasExtensionAlwaysFalse(t *testing.T) {
	b := New()
	if b.HasExtension("anything") {
		t.Fatal("software backend must report no extensions")
	}
}
