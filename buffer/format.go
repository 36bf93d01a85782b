package buffer

import "sort"

// FourCC is a DRM four-character-code pixel format, as defined by the
// kernel's <drm/drm_fourcc.h>. Values are constructed the same way the
// kernel macro does: four ASCII bytes packed little-endian.
type FourCC uint32

func fourcc(a, b, c, d byte) FourCC {
	return FourCC(a) | FourCC(b)<<8 | FourCC(c)<<16 | FourCC(d)<<24
}

// A subset of the formats a compositor core actually needs to reason
// about; renderer/allocator backends may advertise others by value,
// this is not an exhaustive enum.
var (
	FormatXRGB8888 = fourcc('X', 'R', '2', '4')
	FormatARGB8888 = fourcc('A', 'R', '2', '4')
	FormatXBGR8888 = fourcc('X', 'B', '2', '4')
	FormatABGR8888 = fourcc('A', 'B', '2', '4')
	FormatRGB565   = fourcc('R', 'G', '1', '6')
	FormatNV12     = fourcc('N', 'V', '1', '2')
)

// ModifierInvalid is DRM_FORMAT_MOD_INVALID: the sentinel meaning
// "implicit, driver-defined layout". It must never be compared for
// compatibility across two different GPUs (spec §3 "DRM format set").
const ModifierInvalid uint64 = (1 << 56) - 1

// ModifierLinear is DRM_FORMAT_MOD_LINEAR: plain row-major layout,
// always a safe fallback.
const ModifierLinear uint64 = 0

// FormatSet maps a FourCC to the ordered set of modifiers a display
// or renderer supports it with. Order is preserved (callers may rank
// modifiers by preference) and duplicates are rejected by Add.
type FormatSet struct {
	order []FourCC
	mods  map[FourCC][]uint64
}

// NewFormatSet returns an empty, usable FormatSet.
func NewFormatSet() *FormatSet {
	return &FormatSet{mods: make(map[FourCC][]uint64)}
}

// Add records that format is supported with modifier, appending it to
// the format's modifier list unless already present.
func (s *FormatSet) Add(format FourCC, modifier uint64) {
	if _, ok := s.mods[format]; !ok {
		s.order = append(s.order, format)
		s.mods[format] = nil
	}
	for _, m := range s.mods[format] {
		if m == modifier {
			return
		}
	}
	s.mods[format] = append(s.mods[format], modifier)
}

// Formats returns the set's FourCCs in the order they were first
// added.
func (s *FormatSet) Formats() []FourCC {
	out := make([]FourCC, len(s.order))
	copy(out, s.order)
	return out
}

// Modifiers returns the modifiers recorded for format, or nil if the
// format is not in the set.
func (s *FormatSet) Modifiers(format FourCC) []uint64 {
	return s.mods[format]
}

// Has reports whether format/modifier is in the set.
func (s *FormatSet) Has(format FourCC, modifier uint64) bool {
	for _, m := range s.mods[format] {
		if m == modifier {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no formats at all.
func (s *FormatSet) Empty() bool { return len(s.order) == 0 }

// Intersect returns the set of (format, modifier) pairs present in
// both a and b. If either side is empty, the result is empty (spec
// §3: "intersection with one side empty yields empty").
func Intersect(a, b *FormatSet) *FormatSet {
	out := NewFormatSet()
	if a == nil || b == nil || a.Empty() || b.Empty() {
		return out
	}
	for _, f := range a.order {
		bm := b.mods[f]
		if bm == nil {
			continue
		}
		for _, m := range a.mods[f] {
			for _, bmm := range bm {
				if m == bmm {
					out.Add(f, m)
				}
			}
		}
	}
	return out
}

// Union returns every (format, modifier) pair present in either a or
// b.
func Union(a, b *FormatSet) *FormatSet {
	out := NewFormatSet()
	if a != nil {
		for _, f := range a.order {
			for _, m := range a.mods[f] {
				out.Add(f, m)
			}
		}
	}
	if b != nil {
		for _, f := range b.order {
			for _, m := range b.mods[f] {
				out.Add(f, m)
			}
		}
	}
	return out
}

// WithoutImplicit returns a copy of s with ModifierInvalid entries
// removed from every format. Used when blitting across GPUs, whose
// implicit tiling layouts are not interchangeable (spec §4.3
// "Multi-GPU").
func (s *FormatSet) WithoutImplicit() *FormatSet {
	out := NewFormatSet()
	for _, f := range s.order {
		for _, m := range s.mods[f] {
			if m != ModifierInvalid {
				out.Add(f, m)
			}
		}
	}
	return out
}

// SortModifiers sorts the recorded modifiers for every format in
// ascending numeric order. Renderer/display backends that do not care
// about modifier preference order can call this once after
// populating a set so that Modifiers output is deterministic (useful
// for tests asserting on P5-style stability).
func (s *FormatSet) SortModifiers() {
	for _, f := range s.order {
		sort.Slice(s.mods[f], func(i, j int) bool { return s.mods[f][i] < s.mods[f][j] })
	}
}
