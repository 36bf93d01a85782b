// Package swrender is the software reference implementation of
// render.Renderer/render.RenderPass (SPEC_FULL §6.1): a rasterizer
// over SHM-backed buffer.Buffer memory for use where no GPU is
// available. Only this package's own tests exercise it; the headless
// backend has no readback path and no scene test renders through it.
package swrender

import (
	"image"
	"image/color"
	stddraw "image/draw"

	ximgdraw "golang.org/x/image/draw"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

// Renderer is a software render.Renderer backed entirely by SHM
// buffer views; it has no DRM device of its own.
type Renderer struct {
	formats *buffer.FormatSet
}

// New returns a Renderer advertising support for the common 32bpp
// packed formats via SHM.
func New() *Renderer {
	fs := buffer.NewFormatSet()
	for _, f := range []buffer.FourCC{
		buffer.FormatXRGB8888, buffer.FormatARGB8888,
		buffer.FormatXBGR8888, buffer.FormatABGR8888,
	} {
		fs.Add(f, buffer.ModifierLinear)
	}
	return &Renderer{formats: fs}
}

func (r *Renderer) GetRenderFormats() *buffer.FormatSet        { return r.formats }
func (r *Renderer) GetDMABufTextureFormats() *buffer.FormatSet { return buffer.NewFormatSet() }
func (r *Renderer) GetSHMTextureFormats() *buffer.FormatSet    { return r.formats }
func (r *Renderer) GetDRMFD() (fd int, ok bool)                { return 0, false }

// TextureFromBuffer imports buf's SHM view as a sampleable texture.
func (r *Renderer) TextureFromBuffer(buf *buffer.Buffer) (render.Texture, error) {
	shm := buf.SHM()
	if shm == nil {
		return nil, render.ErrUnsupportedFormat
	}
	img, err := wrapSHM(shm, buf.Width(), buf.Height())
	if err != nil {
		return nil, err
	}
	return &texture{img: img, w: buf.Width(), h: buf.Height()}, nil
}

// BeginBufferPass opens a pass targeting buf's SHM view.
func (r *Renderer) BeginBufferPass(buf *buffer.Buffer, opts render.PassOptions) (render.RenderPass, error) {
	shm := buf.SHM()
	if shm == nil {
		return nil, render.ErrUnsupportedFormat
	}
	img, err := wrapSHM(shm, buf.Width(), buf.Height())
	if err != nil {
		return nil, err
	}
	p := &pass{target: img}
	if opts.ClearColor != nil {
		fillRect(img, img.Bounds(), colorOf(*opts.ClearColor), render.BlendNone)
	}
	return p, nil
}

type texture struct {
	img  *rawImage
	w, h int
}

func (t *texture) Width() int  { return t.w }
func (t *texture) Height() int { return t.h }

type rectPrim struct {
	box   render.Rect
	color color.NRGBA
	blend render.BlendMode
	clip  *render.Rect
}

type texPrim struct {
	tex       *texture
	src, dst  render.Rect
	transform output.Transform
	clip      *render.Rect
	filter    render.FilterMode
	blend     render.BlendMode
	alpha     float32
}

// pass accumulates primitives in submission order and draws them on
// Submit, so back-to-front draw calls composite in the order the
// scene graph walk issued them.
type pass struct {
	target *rawImage
	prims  []any // rectPrim or texPrim
}

func (p *pass) AddRect(box render.Rect, c render.Color, blend render.BlendMode, clip *render.Rect) {
	p.prims = append(p.prims, rectPrim{box, colorOf(c), blend, clip})
}

func (p *pass) AddTexture(tex render.Texture, src, dst render.Rect, transform output.Transform, clip *render.Rect, filter render.FilterMode, blend render.BlendMode, alpha float32) {
	t, ok := tex.(*texture)
	if !ok {
		return
	}
	p.prims = append(p.prims, texPrim{t, src, dst, transform, clip, filter, blend, alpha})
}

func (p *pass) Submit() error {
	for _, prim := range p.prims {
		switch v := prim.(type) {
		case rectPrim:
			box := clipRect(image.Rect(v.box.X, v.box.Y, v.box.X+v.box.W, v.box.Y+v.box.H), v.clip)
			fillRect(p.target, box, v.color, v.blend)
		case texPrim:
			drawTexture(p.target, v)
		}
	}
	return nil
}

func drawTexture(dst *rawImage, v texPrim) {
	srcRect := v.tex.img.Bounds()
	if !v.src.Empty() {
		srcRect = image.Rect(v.src.X, v.src.Y, v.src.X+v.src.W, v.src.Y+v.src.H)
	}
	oriented := applyTransform(v.tex.img.crop(srcRect), v.transform)

	dstRect := clipRect(image.Rect(v.dst.X, v.dst.Y, v.dst.X+v.dst.W, v.dst.Y+v.dst.H), v.clip)
	if dstRect.Empty() {
		return
	}

	op := ximgdraw.Over
	if v.blend == render.BlendNone {
		op = ximgdraw.Src
	}
	scaler := ximgdraw.Scaler(ximgdraw.NearestNeighbor)
	if v.filter == render.FilterLinear {
		scaler = ximgdraw.BiLinear
	}
	scaler.Scale(dst, dstRect, oriented, oriented.Bounds(), op, nil)
}

func colorOf(c render.Color) color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R) * 255),
		G: uint8(clamp01(c.G) * 255),
		B: uint8(clamp01(c.B) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clipRect(r image.Rectangle, clip *render.Rect) image.Rectangle {
	if clip == nil {
		return r
	}
	c := image.Rect(clip.X, clip.Y, clip.X+clip.W, clip.Y+clip.H)
	return r.Intersect(c)
}

func fillRect(dst stddraw.Image, r image.Rectangle, c color.NRGBA, blend render.BlendMode) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if blend == render.BlendNone || c.A == 255 {
				dst.Set(x, y, c)
				continue
			}
			dst.Set(x, y, blendOver(dst.At(x, y), c))
		}
	}
}

func blendOver(dstC color.Color, src color.NRGBA) color.Color {
	dr, dg, db, _ := dstC.RGBA()
	a := float64(src.A) / 255
	inv := 1 - a
	r := uint8(float64(src.R)*a + float64(dr>>8)*inv)
	g := uint8(float64(src.G)*a + float64(dg>>8)*inv)
	b := uint8(float64(src.B)*a + float64(db>>8)*inv)
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
