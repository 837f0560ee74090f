package framebuffer

import "testing"

func mustNew(t *testing.T, width, height int, format Format, sampleCount int, cpuAccessible bool) *Framebuffer {
	t.Helper()
	fb, err := New(width, height, format, sampleCount, cpuAccessible)
	if err != nil {
		t.Fatalf("mustNew(t, %d, %d, %v): %v", width, height, format, err)
	}
	return fb
}

func TestBytesPerPixel(t *testing.T) {
	cases := map[Format]int{
		RGBA8: 4, RGB8: 3, RGB565: 2, BGRA8: 4, BGR8: 3, RGBAFloat32: 16,
	}
	for f, want := range cases {
		if got := f.BytesPerPixel(); got != want {
			t.Errorf("%v.BytesPerPixel() = %d, want %d", f, got, want)
		}
	}
}

func TestNewRejectsZeroSize(t *testing.T) {
	cases := []struct{ width, height int }{
		{0, 0}, {0, 4}, {4, 0}, {-1, 4},
	}
	for _, c := range cases {
		if _, err := New(c.width, c.height, RGBA8, 1, true); err == nil {
			t.Errorf("New(%d, %d, ...) = nil error, want rejection (spec §8 zero-sized framebuffer)", c.width, c.height)
		}
	}
}

func TestNewRejectsOverflowingSize(t *testing.T) {
	// width * height * bytesPerPixel must overflow a platform size counter;
	// RGBAFloat32 is 16 bytes/pixel, so a width this large overflows on
	// both 32- and 64-bit platforms.
	const huge = 1 << 62
	if _, err := New(huge, huge, RGBAFloat32, 1, true); err == nil {
		t.Fatal("New with an overflowing width*height*bytesPerPixel product = nil error, want rejection (spec §8)")
	}
}

func TestBufferSizeMatchesDimensions(t *testing.T) {
	fb := mustNew(t, 4, 3, RGBA8, 1, true)
	if len(fb.Buffer()) != 4*3*4 {
		t.Fatalf("buffer size = %d, want %d", len(fb.Buffer()), 4*3*4)
	}
}

func TestClearSetsDirtyFlags(t *testing.T) {
	fb := mustNew(t, 2, 2, RGBA8, 1, true)
	fb.CPUDirty = true
	fb.GPUDirty = false
	fb.Clear(1, 0, 0, 1)
	if fb.CPUDirty {
		t.Error("CPUDirty should be false after Clear")
	}
	if !fb.GPUDirty {
		t.Error("GPUDirty should be true after Clear")
	}
	buf := fb.Buffer()
	if buf[0] != 255 || buf[1] != 0 || buf[2] != 0 || buf[3] != 255 {
		t.Fatalf("pixel 0 = %v, want [255 0 0 255]", buf[0:4])
	}
}

func TestResizeSameDimensionsIsNoop(t *testing.T) {
	fb := mustNew(t, 4, 4, RGBA8, 1, true)
	fb.Clear(1, 1, 1, 1)
	buf := fb.Buffer()
	fb.Resize(4, 4)
	if &buf[0] != &fb.Buffer()[0] {
		t.Fatal("Resize to identical dimensions reallocated the buffer")
	}
}

func TestResizeDifferentDimensionsMarksDirty(t *testing.T) {
	fb := mustNew(t, 4, 4, RGBA8, 1, true)
	fb.CPUDirty, fb.GPUDirty = false, false
	fb.Resize(8, 8)
	if len(fb.Buffer()) != 8*8*4 {
		t.Fatalf("buffer size after resize = %d, want %d", len(fb.Buffer()), 8*8*4)
	}
	if !fb.CPUDirty || !fb.GPUDirty {
		t.Fatal("Resize to different dimensions must mark both sides dirty")
	}
}

func TestConvertRGBA8ToRGB565RoundTrip(t *testing.T) {
	src := mustNew(t, 2, 1, RGBA8, 1, true)
	buf := src.Buffer()
	copy(buf[0:4], []byte{255, 0, 0, 255})
	copy(buf[4:8], []byte{0, 255, 0, 255})
	src.CPUDirty = false

	mid := mustNew(t, 2, 1, RGB565, 1, true)
	if ok := src.ConvertTo(RGB565, mid); !ok {
		t.Fatal("ConvertTo RGB565 failed")
	}

	back := mustNew(t, 2, 1, RGBA8, 1, true)
	if ok := mid.ConvertTo(RGBA8, back); !ok {
		t.Fatal("ConvertTo RGBA8 failed")
	}

	checkWithin(t, back.Buffer()[0:4], []byte{248, 0, 0, 255}, 8)
	checkWithin(t, back.Buffer()[4:8], []byte{0, 252, 0, 255}, 8)
}

func TestConvertRGBA8ToBGRA8ExactRoundTrip(t *testing.T) {
	src := mustNew(t, 1, 1, RGBA8, 1, true)
	copy(src.Buffer(), []byte{10, 20, 30, 40})

	mid := mustNew(t, 1, 1, BGRA8, 1, true)
	src.ConvertTo(BGRA8, mid)
	if got := mid.Buffer(); got[0] != 30 || got[1] != 20 || got[2] != 10 || got[3] != 40 {
		t.Fatalf("BGRA8 pixel = %v, want [30 20 10 40]", got)
	}

	back := mustNew(t, 1, 1, RGBA8, 1, true)
	mid.ConvertTo(RGBA8, back)
	checkWithin(t, back.Buffer(), []byte{10, 20, 30, 40}, 0)
}

func checkWithin(t *testing.T, got, want []byte, tol int) {
	t.Helper()
	for i := range want {
		d := int(got[i]) - int(want[i])
		if d < 0 {
			d = -d
		}
		if d > tol {
			t.Fatalf("component %d = %d, want within %d of %d (got %v want %v)", i, got[i], tol, want[i], got, want)
		}
	}
}
