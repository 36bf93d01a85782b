package swrender

import (
	"image"
	"image/color"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

// rawImage is a stddraw.Image view directly over a buffer.SHM's
// mapped bytes, translating DRM packed-32bpp layouts to/from
// color.NRGBA without an intermediate copy.
type rawImage struct {
	data             []byte
	stride           int
	originX, originY int
	w, h             int
	bgrOrder         bool // memory byte order is B,G,R,[X|A] rather than R,G,B,[X|A]
	hasAlpha         bool
}

func wrapSHM(shm *buffer.SHM, width, height int) (*rawImage, error) {
	if width <= 0 || height <= 0 {
		return nil, render.ErrUnsupportedFormat
	}
	var bgrOrder, hasAlpha bool
	switch shm.Format {
	case buffer.FormatXRGB8888:
		bgrOrder, hasAlpha = true, false
	case buffer.FormatARGB8888:
		bgrOrder, hasAlpha = true, true
	case buffer.FormatXBGR8888:
		bgrOrder, hasAlpha = false, false
	case buffer.FormatABGR8888:
		bgrOrder, hasAlpha = false, true
	default:
		return nil, render.ErrUnsupportedFormat
	}
	if len(shm.Data) < int(shm.Stride)*height {
		return nil, render.ErrUnsupportedFormat
	}
	return &rawImage{data: shm.Data, stride: int(shm.Stride), w: width, h: height, bgrOrder: bgrOrder, hasAlpha: hasAlpha}, nil
}

func (r *rawImage) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }
func (r *rawImage) ColorModel() color.Model { return color.NRGBAModel }

func (r *rawImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return color.NRGBA{}
	}
	i := (y+r.originY)*r.stride + (x+r.originX)*4
	b0, b1, b2, b3 := r.data[i], r.data[i+1], r.data[i+2], r.data[i+3]
	var rr, gg, bb, aa byte
	if r.bgrOrder {
		bb, gg, rr = b0, b1, b2
	} else {
		rr, gg, bb = b0, b1, b2
	}
	if r.hasAlpha {
		aa = b3
	} else {
		aa = 255
	}
	return color.NRGBA{R: rr, G: gg, B: bb, A: aa}
}

func (r *rawImage) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return
	}
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	i := (y+r.originY)*r.stride + (x+r.originX)*4
	if r.bgrOrder {
		r.data[i], r.data[i+1], r.data[i+2] = nc.B, nc.G, nc.R
	} else {
		r.data[i], r.data[i+1], r.data[i+2] = nc.R, nc.G, nc.B
	}
	if r.hasAlpha {
		r.data[i+3] = nc.A
	} else {
		r.data[i+3] = 0xff
	}
}

// crop returns a view of r restricted to rect, sharing the same
// backing memory.
func (r *rawImage) crop(rect image.Rectangle) *rawImage {
	rect = rect.Intersect(r.Bounds())
	return &rawImage{
		data: r.data, stride: r.stride,
		originX: r.originX + rect.Min.X, originY: r.originY + rect.Min.Y,
		w: rect.Dx(), h: rect.Dy(),
		bgrOrder: r.bgrOrder, hasAlpha: r.hasAlpha,
	}
}

// applyTransform orients img per one of the eight output transforms
// (spec §3 "transform"). The identity case returns img unchanged;
// every other case materializes a reoriented copy, since
// golang.org/x/image/draw has no rotate primitive of its own.
func applyTransform(img *rawImage, t output.Transform) image.Image {
	switch t {
	case output.TransformNormal:
		return img
	case output.TransformFlipped:
		return flipH(img)
	case output.Transform90:
		return rotateCW(img)
	case output.Transform180:
		return rotateCW(rotateCW(img))
	case output.Transform270:
		return rotateCW(rotateCW(rotateCW(img)))
	case output.TransformFlipped90:
		return rotateCW(flipH(img))
	case output.TransformFlipped180:
		return rotateCW(rotateCW(flipH(img)))
	case output.TransformFlipped270:
		return rotateCW(rotateCW(rotateCW(flipH(img))))
	default:
		return img
	}
}

func flipH(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+b.Dx()-1-x, b.Min.Y+y)).(color.NRGBA)
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}

// rotateCW rotates src 90 degrees clockwise.
func rotateCW(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.SetNRGBA(h-1-y, x, c)
		}
	}
	return dst
}
