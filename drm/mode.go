package drm

import "fmt"

// AspectRatio is the picture aspect ratio hint carried by a kernel
// mode's flags field. The kernel UAPI does not document the mask as
// exhaustive, so unrecognized bit patterns decode to AspectRatioUnknown
// rather than being guessed at (spec §9 open question).
type AspectRatio int

const (
	AspectRatioNone AspectRatio = iota
	AspectRatio4_3
	AspectRatio16_9
	AspectRatio64_27
	AspectRatio256_135
	AspectRatioUnknown
)

func (a AspectRatio) String() string {
	switch a {
	case AspectRatioNone:
		return "none"
	case AspectRatio4_3:
		return "4:3"
	case AspectRatio16_9:
		return "16:9"
	case AspectRatio64_27:
		return "64:27"
	case AspectRatio256_135:
		return "256:135"
	default:
		return "unknown"
	}
}

// aspectRatioFromFlags decodes the DRM_MODE_FLAG_PIC_AR_* bits.
// Bits outside the recognized mask log as unknown instead of being
// guessed (spec §9).
func aspectRatioFromFlags(flags uint32) AspectRatio {
	const mask = 0x00780000
	const shift = 19
	switch (flags & mask) >> shift {
	case 0:
		return AspectRatioNone
	case 1:
		return AspectRatio4_3
	case 2:
		return AspectRatio16_9
	case 3:
		return AspectRatio64_27
	case 4:
		return AspectRatio256_135
	default:
		return AspectRatioUnknown
	}
}

// KernelMode is the exact kernel mode descriptor (struct
// drm_mode_modeinfo), kept verbatim so it can be round-tripped into a
// mode blob without lossy reconstruction.
type KernelMode struct {
	Clock                                  uint32 // kHz
	HDisplay, HSyncStart, HSyncEnd, HTotal uint16
	HSkew                                   uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal uint16
	VScan                                   uint16
	VRefresh                                uint32 // Hz, as reported by the kernel
	Flags                                   uint32
	Type                                    uint32
	Name                                    string // up to 32 bytes on the wire
}

// Mode is an output mode: the compositor-facing shape (spec §3
// "Output mode"). For DRM outputs it additionally carries the exact
// kernel mode descriptor so commits can reference it without lossy
// reconstruction.
type Mode struct {
	Width, Height int
	RefreshMHz    int // milli-hertz
	Preferred     bool
	AspectRatio   AspectRatio
	Kernel        KernelMode
}

// FromKernelMode builds a Mode from a raw kernel descriptor.
func FromKernelMode(km KernelMode, preferred bool) Mode {
	return Mode{
		Width:       int(km.HDisplay),
		Height:      int(km.VDisplay),
		RefreshMHz:  int(km.VRefresh) * 1000,
		Preferred:   preferred,
		AspectRatio: aspectRatioFromFlags(km.Flags),
		Kernel:      km,
	}
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d.%03dHz", m.Width, m.Height, m.RefreshMHz/1000, m.RefreshMHz%1000)
}

// Equal reports whether two modes describe the same timings (by
// kernel name/clock, not just width/height/refresh — two modes can
// share all three while differing in blanking).
func (m Mode) Equal(o Mode) bool {
	return m.Kernel.Name == o.Kernel.Name && m.Kernel.Clock == o.Kernel.Clock &&
		m.Width == o.Width && m.Height == o.Height
}
