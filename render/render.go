// Package render defines the narrow renderer/render-pass contract a
// compositing backend implements to turn scene nodes into pixels
// (spec §6 "Renderer"/"RenderPass"). Concrete GPU backends are out of
// scope (spec §1 Non-goals); render/swrender ships the one reference
// implementation this module carries.
package render

import (
	"errors"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/output"
)

// ErrUnsupportedFormat reports that a buffer or texture request named
// a format/modifier the renderer cannot import.
var ErrUnsupportedFormat = errors.New("render: unsupported format")

// FilterMode selects how AddTexture samples a scaled source.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// BlendMode selects how a primitive's alpha combines with the
// destination.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendPremultiplied
)

// Rect is an integer box in pass-local (pixel) coordinates, used for
// source/destination/clip boxes.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the box has no area, the "full buffer" sentinel
// spec §3 uses for an unset src_box.
func (r Rect) Empty() bool { return r.W == 0 && r.H == 0 }

// Color is a straight (non-premultiplied) RGBA color in [0,1].
type Color struct {
	R, G, B, A float32
}

// Texture is an opaque handle a Renderer produces from
// TextureFromBuffer; its only use is as an AddTexture argument.
type Texture interface {
	// Width and Height report the texture's pixel dimensions.
	Width() int
	Height() int
}

// PassOptions configures BeginBufferPass.
type PassOptions struct {
	// ClearColor, if non-nil, is written to the whole target before
	// any primitive is drawn.
	ClearColor *Color
}

// Renderer is the compositor-facing handle to a rendering backend
// (spec §6 "Renderer").
type Renderer interface {
	// GetRenderFormats returns the formats/modifiers this renderer can
	// write to as a render target.
	GetRenderFormats() *buffer.FormatSet

	// GetDMABufTextureFormats returns the formats/modifiers this
	// renderer can import as a texture from a DMA-BUF buffer.
	GetDMABufTextureFormats() *buffer.FormatSet

	// GetSHMTextureFormats returns the formats this renderer can
	// import as a texture from an SHM buffer.
	GetSHMTextureFormats() *buffer.FormatSet

	// GetDRMFD returns the render node fd backing this renderer, if
	// it has one (ok is false for backends with no DRM device, e.g.
	// a pure software rasterizer).
	GetDRMFD() (fd int, ok bool)

	// TextureFromBuffer imports buf's contents as a sampleable
	// texture.
	TextureFromBuffer(buf *buffer.Buffer) (Texture, error)

	// BeginBufferPass opens a RenderPass targeting buf.
	BeginBufferPass(buf *buffer.Buffer, opts PassOptions) (RenderPass, error)
}

// RenderPass accumulates draw primitives against one target buffer,
// recorded in the order Submit will execute them (spec §6
// "RenderPass").
type RenderPass interface {
	// AddRect draws a flat-colored box, clipped to clip if non-nil.
	AddRect(box Rect, color Color, blend BlendMode, clip *Rect)

	// AddTexture draws src of tex into dst, applying transform and
	// clipped to clip if non-nil.
	AddTexture(tex Texture, src, dst Rect, transform output.Transform, clip *Rect, filter FilterMode, blend BlendMode, alpha float32)

	// Submit executes every recorded primitive and ends the pass. A
	// RenderPass must not be used again after Submit returns.
	Submit() error
}
