package imaging

import "math"

// Size is a display size in (possibly fractional) device-independent units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EffectiveSize applies the scale law to d's native dimensions: a positive
// scale multiplies both dimensions, any other value leaves them unchanged.
// A nil d has zero size.
func EffectiveSize(d *Decoded, scale float64) Size {
	if d == nil {
		return Size{}
	}
	w, h := float64(d.NativeWidth), float64(d.NativeHeight)
	if scale > 0 && !math.IsInf(scale, 0) {
		return Size{Width: finite(w * scale), Height: finite(h * scale)}
	}
	return Size{Width: w, Height: h}
}

// finite saturates an overflowed product so the size stays encodable.
func finite(v float64) float64 {
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

// MaxPixelDimension is the largest value Pixels returns for either side.
const MaxPixelDimension = math.MaxInt32

// Area returns Width*Height without rounding.
func (s Size) Area() float64 { return s.Width * s.Height }

// Pixels rounds s to whole pixels, never below 1x1 for a non-empty size.
// Sides too large for an int are clamped to MaxPixelDimension.
func (s Size) Pixels() (int, int) {
	return pixels(s.Width), pixels(s.Height)
}

func pixels(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxPixelDimension:
		return MaxPixelDimension
	}
	if p := int(math.Round(v)); p >= 1 {
		return p
	}
	return 1
}
