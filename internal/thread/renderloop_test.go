package thread

import "testing"

func TestRenderLoopPendingResizeCoalesces(t *testing.T) {
	rl := NewRenderLoop()
	defer rl.Stop()

	if rl.HasPendingResize() {
		t.Fatal("expected no pending resize on a fresh loop")
	}

	rl.RequestResize(100, 100)
	rl.RequestResize(200, 150)
	if !rl.HasPendingResize() {
		t.Fatal("expected a pending resize after RequestResize")
	}

	w, h, ok := rl.ConsumePendingResize()
	if !ok || w != 200 || h != 150 {
		t.Fatalf("got (%d, %d, %v), want (200, 150, true) for the last requested size", w, h, ok)
	}
	if rl.HasPendingResize() {
		t.Fatal("expected ConsumePendingResize to clear the pending flag")
	}
	if _, _, ok := rl.ConsumePendingResize(); ok {
		t.Fatal("expected a second consume with no new request to report nothing pending")
	}
}

func TestRenderLoopZeroSizeResizeIsIgnored(t *testing.T) {
	rl := NewRenderLoop()
	defer rl.Stop()

	rl.RequestResize(0, 100)
	if rl.HasPendingResize() {
		t.Fatal("expected a zero-dimension resize request to be ignored")
	}
}

func TestRenderLoopRunOnRenderThreadVoidExecutes(t *testing.T) {
	rl := NewRenderLoop()
	defer rl.Stop()

	ran := false
	rl.RunOnRenderThreadVoid(func() { ran = true })
	if !ran {
		t.Fatal("expected RunOnRenderThreadVoid to execute its function")
	}
}

func TestRenderLoopPauseResume(t *testing.T) {
	rl := NewRenderLoop()
	defer rl.Stop()

	if rl.IsRenderingPaused() {
		t.Fatal("expected a fresh loop to not be paused")
	}
	rl.PauseRendering()
	if !rl.IsRenderingPaused() {
		t.Fatal("expected PauseRendering to set the paused flag")
	}
	rl.ResumeRendering()
	if rl.IsRenderingPaused() {
		t.Fatal("expected ResumeRendering to clear the paused flag")
	}
}
