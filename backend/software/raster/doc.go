// Package raster provides the CPU-resident RGBA8 color target backing the
// software render backend (spec §4.5 "software raster").
//
// The DX8 interface surface this module retargets (device, resources, state
// blocks) is out of scope (spec §1); there is no in-repo draw call that
// submits triangles to this package. What spec §4.5's software backend
// needs from a rasterizer is only an offscreen color buffer sized to the
// current framebuffer and a synchronous present copy, so that is all this
// package keeps: allocate, clear, resize, and hand back the buffer for
// backend.GetFramebuffer to mirror into a framebuffer.Framebuffer.
package raster
