package imaging

import (
	"image/color"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSLColor represents a color in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ColorFrequency is a quantised color and the share of opaque pixels using it.
type ColorFrequency struct {
	Hex        string   `json:"hex"`
	Percentage float64  `json:"percentage"`
	RGB        RGBColor `json:"rgb"`
	HSL        HSLColor `json:"hsl"`
}

// maxColorSamples caps how many pixels DominantColors inspects. Larger
// images are sampled on a regular stride.
const maxColorSamples = 256 * 256

// DominantColors returns up to count of the most common colors in the first
// frame of d, most frequent first.
//
// Components are quantised to multiples of 16 so near-identical shades group
// together. Pixels with alpha below 50% are skipped because they would not
// be visible on the placeholder the host paints.
func DominantColors(d *Decoded, count int) []ColorFrequency {
	if d == nil || d.Image == nil || count <= 0 {
		return nil
	}
	img := d.Image
	bounds := img.Bounds()

	stride := 1
	if pixels := bounds.Dx() * bounds.Dy(); pixels > maxColorSamples {
		stride = int(math.Ceil(math.Sqrt(float64(pixels) / maxColorSamples)))
	}

	counts := make(map[RGBColor]int)
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			c := img.NRGBAAt(x, y)
			if c.A < 128 {
				continue
			}
			key := RGBColor{R: c.R / 16 * 16, G: c.G / 16 * 16, B: c.B / 16 * 16}
			counts[key]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for rgb, n := range counts {
		colors = append(colors, newColorFrequency(rgb, float64(n)/float64(total)*100))
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if len(colors) > count {
		colors = colors[:count]
	}
	return colors
}

// DominantColor returns the single most common color, or false for images
// with no visible pixels.
func DominantColor(d *Decoded) (ColorFrequency, bool) {
	colors := DominantColors(d, 1)
	if len(colors) == 0 {
		return ColorFrequency{}, false
	}
	return colors[0], true
}

func newColorFrequency(rgb RGBColor, percentage float64) ColorFrequency {
	c, _ := colorful.MakeColor(color.NRGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255})
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return ColorFrequency{
		Hex:        c.Hex(),
		Percentage: math.Round(percentage*100) / 100,
		RGB:        rgb,
		HSL: HSLColor{
			H: int(math.Round(h)) % 360,
			S: int(math.Round(s * 100)),
			L: int(math.Round(l * 100)),
		},
	}
}
