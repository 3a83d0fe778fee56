package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"time"

	"github.com/disintegration/imaging"
)

// gifDelayUnit is the unit of gif.GIF.Delay.
const gifDelayUnit = 10 * time.Millisecond

// decodeAnimatedGIF decodes every frame of a GIF and composes each one onto
// a full canvas, applying the disposal method of the previous frame.
func (dec *Decoder) decodeAnimatedGIF(data []byte) (*Decoded, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrDecodeFailure)
	}

	canvasBounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if canvasBounds.Empty() {
		for _, frame := range g.Image {
			canvasBounds = canvasBounds.Union(frame.Bounds())
		}
	}
	if err := dec.checkPixels(canvasBounds.Dx(), canvasBounds.Dy()); err != nil {
		return nil, err
	}
	// Every frame is kept as a full canvas.
	total := int64(canvasBounds.Dx()) * int64(canvasBounds.Dy()) * int64(len(g.Image))
	if total > dec.maxAnimation {
		return nil, fmt.Errorf("%w: %w: %d frames of %dx%d exceed %d pixels",
			ErrDecodeFailure, ErrTooLarge, len(g.Image), canvasBounds.Dx(), canvasBounds.Dy(), dec.maxAnimation)
	}

	canvas := image.NewNRGBA(canvasBounds)
	frames := make([]Frame, 0, len(g.Image))
	for i, src := range g.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)

		var delay time.Duration
		if i < len(g.Delay) {
			delay = time.Duration(g.Delay[i]) * gifDelayUnit
		}
		frames = append(frames, Frame{Image: imaging.Clone(canvas), Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			draw.Draw(canvas, canvasBounds, previous, image.Point{}, draw.Src)
		}
	}

	first := frames[0].Image
	return &Decoded{
		Image:        first,
		Frames:       frames,
		LoopCount:    g.LoopCount,
		NativeWidth:  first.Bounds().Dx(),
		NativeHeight: first.Bounds().Dy(),
		IsAnimated:   true,
		Format:       "gif",
	}, nil
}
