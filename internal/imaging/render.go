package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// DefaultMaxRenderPixels bounds the output of Scaled.
const DefaultMaxRenderPixels = 64 << 20

// ErrRenderTooLarge reports a scale whose output would exceed
// DefaultMaxRenderPixels.
var ErrRenderTooLarge = errors.New("rendered image too large")

// RenderResult contains a scaled bitmap ready for the host to paint.
type RenderResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Frame       int    `json:"frame"`
	FrameCount  int    `json:"frame_count"`
	DelayMillis int64  `json:"delay_ms,omitempty"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Scaled returns frame of d resized to its effective size for scale.
//
// Static images are resampled with Lanczos. Animation frames use
// nearest-neighbour so that repeated per-frame rendering stays cheap and
// pixel-art GIFs keep hard edges. The frame index wraps around the frame
// count.
func Scaled(d *Decoded, scale float64, frame int) (image.Image, error) {
	if d == nil || d.Image == nil {
		return nil, fmt.Errorf("no image loaded")
	}

	src := d.Image
	if len(d.Frames) > 0 {
		if frame < 0 {
			frame = 0
		}
		src = d.Frames[frame%len(d.Frames)].Image
	}

	size := EffectiveSize(d, scale)
	if size.Area() > DefaultMaxRenderPixels {
		return nil, fmt.Errorf("%w: %.0fx%.0f at scale %g exceeds %d pixels",
			ErrRenderTooLarge, size.Width, size.Height, scale, DefaultMaxRenderPixels)
	}
	w, h := size.Pixels()
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		return src, nil
	}
	if d.IsAnimated {
		return transform.Resize(src, w, h, transform.NearestNeighbor), nil
	}
	return imaging.Resize(src, w, h, imaging.Lanczos), nil
}

// Render scales one frame of d and encodes it as base64 PNG.
func Render(d *Decoded, scale float64, frame int) (*RenderResult, error) {
	scaled, err := Scaled(d, scale, frame)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode rendered image: %w", err)
	}

	result := &RenderResult{
		Width:       scaled.Bounds().Dx(),
		Height:      scaled.Bounds().Dy(),
		FrameCount:  d.FrameCount(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}
	if len(d.Frames) > 0 {
		if frame < 0 {
			frame = 0
		}
		result.Frame = frame % len(d.Frames)
		result.DelayMillis = d.Frames[result.Frame].Delay.Milliseconds()
	}
	return result, nil
}
