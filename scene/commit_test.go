package scene

import (
	"testing"

	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/output"
	"github.com/gviegas/kmscore/render"
)

type fakeTexture struct{ w, h int }

func (t fakeTexture) Width() int  { return t.w }
func (t fakeTexture) Height() int { return t.h }

type fakePass struct {
	rects    int
	textures int
}

func (p *fakePass) AddRect(box render.Rect, color render.Color, blend render.BlendMode, clip *render.Rect) {
	p.rects++
}
func (p *fakePass) AddTexture(tex render.Texture, src, dst render.Rect, transform output.Transform, clip *render.Rect, filter render.FilterMode, blend render.BlendMode, alpha float32) {
	p.textures++
}
func (p *fakePass) Submit() error { return nil }

type fakeRenderer struct{ lastPass *fakePass }

func (r *fakeRenderer) GetRenderFormats() *buffer.FormatSet        { return buffer.NewFormatSet() }
func (r *fakeRenderer) GetDMABufTextureFormats() *buffer.FormatSet { return buffer.NewFormatSet() }
func (r *fakeRenderer) GetSHMTextureFormats() *buffer.FormatSet    { return buffer.NewFormatSet() }
func (r *fakeRenderer) GetDRMFD() (int, bool)                      { return 0, false }
func (r *fakeRenderer) TextureFromBuffer(buf *buffer.Buffer) (render.Texture, error) {
	return fakeTexture{w: buf.Width(), h: buf.Height()}, nil
}
func (r *fakeRenderer) BeginBufferPass(buf *buffer.Buffer, opts render.PassOptions) (render.RenderPass, error) {
	r.lastPass = &fakePass{}
	return r.lastPass, nil
}

func TestCommitTakesDirectScanoutWhenEligible(t *testing.T) {
	s := New()
	so := newTestSceneOutput(t, s, 100, 100, 0, 0)
	n := s.InsertBuffer(Nil)
	s.SetBuffer(n, buffer.New(100, 100), render.Rect{}, output.TransformNormal)

	r := &fakeRenderer{}
	ok, err := s.Commit(so, r)
	if err != nil || !ok {
		t.Fatalf("Commit: ok=%v err=%v", ok, err)
	}
	if r.lastPass != nil {
		t.Fatal("expected direct scan-out, but a render pass was opened")
	}
}

func TestCommitFallsBackToCompositingWithMultipleNodes(t *testing.T) {
	s := New()
	so := newTestSceneOutput(t, s, 100, 100, 0, 0)
	rectNode(t, s, 0, 0, 10, 10, render.Color{A: 1}, false)
	n := s.InsertBuffer(Nil)
	s.SetBuffer(n, buffer.New(100, 100), render.Rect{}, output.TransformNormal)

	r := &fakeRenderer{}
	ok, err := s.Commit(so, r)
	if err != nil || !ok {
		t.Fatalf("Commit: ok=%v err=%v", ok, err)
	}
	if r.lastPass == nil {
		t.Fatal("expected a composited pass to be opened")
	}
	// 1 background-clear rect (full damage on a fresh buffer) + 1 scene
	// rect node, plus 1 texture draw for the buffer node.
	if r.lastPass.rects != 2 || r.lastPass.textures != 1 {
		t.Fatalf("expected 2 rect draws and 1 texture draw, got rects=%d textures=%d", r.lastPass.rects, r.lastPass.textures)
	}
}
