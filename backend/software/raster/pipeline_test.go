package raster

import "testing"

func TestNewPipelineAllocatesBlackBuffer(t *testing.T) {
	p := NewPipeline(4, 2)
	if p.Width() != 4 || p.Height() != 2 {
		t.Fatalf("got %dx%d, want 4x2", p.Width(), p.Height())
	}
	buf := p.GetColorBuffer()
	if len(buf) != 4*2*4 {
		t.Fatalf("color buffer len = %d, want %d", len(buf), 4*2*4)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (freshly allocated buffer is black)", i, b)
		}
	}
}

func TestPipelineClear(t *testing.T) {
	p := NewPipeline(2, 1)
	p.Clear(1.0, 0.5, 0.25, 1.0)
	r, g, b, a := p.GetPixel(0, 0)
	if r != 255 || g != 127 || b != 63 || a != 255 {
		t.Fatalf("got (%d,%d,%d,%d), want (255,127,63,255)", r, g, b, a)
	}
	r, g, b, a = p.GetPixel(1, 0)
	if r != 255 || g != 127 || b != 63 || a != 255 {
		t.Fatalf("second pixel got (%d,%d,%d,%d), want (255,127,63,255)", r, g, b, a)
	}
}

func TestPipelineClearIsIdempotent(t *testing.T) {
	p := NewPipeline(2, 2)
	p.Clear(0.2, 0.4, 0.6, 0.8)
	first := p.GetColorBuffer()
	p.Clear(0.2, 0.4, 0.6, 0.8)
	second := p.GetColorBuffer()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("byte %d differs across repeated identical clears: %d != %d", i, first[i], second[i])
		}
	}
}

func TestPipelineGetPixelOutOfBounds(t *testing.T) {
	p := NewPipeline(2, 2)
	p.Clear(1, 1, 1, 1)
	r, g, b, a := p.GetPixel(-1, 0)
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("out-of-bounds GetPixel got (%d,%d,%d,%d), want all zero", r, g, b, a)
	}
	r, g, b, a = p.GetPixel(2, 0)
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("out-of-bounds GetPixel got (%d,%d,%d,%d), want all zero", r, g, b, a)
	}
}

func TestPipelineResize(t *testing.T) {
	p := NewPipeline(4, 4)
	p.Clear(1, 1, 1, 1)
	p.Resize(8, 2)
	if p.Width() != 8 || p.Height() != 2 {
		t.Fatalf("got %dx%d after resize, want 8x2", p.Width(), p.Height())
	}
	if len(p.GetColorBuffer()) != 8*2*4 {
		t.Fatalf("color buffer len after resize = %d, want %d", len(p.GetColorBuffer()), 8*2*4)
	}
}

func TestClampByte(t *testing.T) {
	cases := []struct {
		in   float32
		want byte
	}{
		{-10, 0},
		{0, 0},
		{127, 127},
		{255, 255},
		{300, 255},
	}
	for _, c := range cases {
		if got := clampByte(c.in); got != c.want {
			t.Errorf("clampByte(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
