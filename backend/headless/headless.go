// Package headless implements a backend.Backend that manufactures
// virtual outputs entirely in memory, for running the core without any
// real display hardware or nested window system (spec §2 L2 "headless").
package headless

import (
	"github.com/gviegas/kmscore/alloc/shm"
	"github.com/gviegas/kmscore/backend"
	"github.com/gviegas/kmscore/buffer"
	"github.com/gviegas/kmscore/internal/event"
	"github.com/gviegas/kmscore/output"
)

func init() {
	backend.Register("headless", func(lib any) (backend.Backend, error) {
		return New(), nil
	})
}

// committer accepts every test and commit unconditionally: a headless
// output has nothing downstream to refuse a state, mirroring how a
// software-only backend has no hardware refusal path (spec §7
// "Hardware refused" does not apply here).
type committer struct{}

func (committer) Test(o *output.Output, s *output.State) (bool, error)   { return true, nil }
func (committer) Commit(o *output.Output, s *output.State) (bool, error) { return true, nil }

// Backend manufactures Output handles on demand via AddOutput; it
// never discovers hardware on its own, so NewOutput only fires for
// outputs the caller explicitly adds after Start.
type Backend struct {
	started bool
	outputs []*output.Output

	newOutput event.Signal[*output.Output]
	newInput  event.Signal[backend.InputDevice]
}

// New returns an unstarted headless backend.
func New() *Backend { return &Backend{} }

// Start marks the backend ready to accept AddOutput calls. Headless
// has no device probing to fail, so Start always succeeds.
func (b *Backend) Start() bool {
	b.started = true
	return true
}

// Destroy drops every output this backend created.
func (b *Backend) Destroy() {
	for _, o := range b.outputs {
		o.Destroy()
	}
	b.outputs = nil
	b.started = false
}

// AddOutput creates and registers a virtual output of the given size,
// emitting NewOutput the way a real backend does on hot-plug (spec
// §3 "Output" lifecycle: "created by a backend, emitted on
// new_output").
func (b *Backend) AddOutput(name string, width, height int) *output.Output {
	o := output.New(name, committer{})
	o.Width, o.Height = width, height
	o.RenderFormat = buffer.FormatXRGB8888
	formats := buffer.NewFormatSet()
	formats.Add(buffer.FormatXRGB8888, buffer.ModifierLinear)
	o.DisplayFormats = formats
	o.Swapchain = output.NewSwapchain(shm.New(), width, height, buffer.FormatXRGB8888, formats)

	b.outputs = append(b.outputs, o)
	b.newOutput.Emit(o)
	return o
}

// RemoveOutput destroys o and stops tracking it, modeling an
// unplug for the headless backend's own synthetic outputs.
func (b *Backend) RemoveOutput(o *output.Output) {
	for i, x := range b.outputs {
		if x == o {
			b.outputs = append(b.outputs[:i], b.outputs[i+1:]...)
			break
		}
	}
	o.Destroy()
}

func (b *Backend) NewOutput() *event.Signal[*output.Output] { return &b.newOutput }
func (b *Backend) NewInput() *event.Signal[backend.InputDevice] { return &b.newInput }

// DRMFD reports no render node: headless has no GPU.
func (b *Backend) DRMFD() (int, bool) { return 0, false }

// BufferCaps reports only mappable buffers: headless allocates via
// alloc/shm, never DMA-BUF.
func (b *Backend) BufferCaps() buffer.Caps { return buffer.CapDataPtr }

// PresentationClock reports no real clock domain.
func (b *Backend) PresentationClock() (backend.ClockID, bool) { return backend.ClockUnknown, false }
