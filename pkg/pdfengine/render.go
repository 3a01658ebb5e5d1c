package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// RenderPage scales the page image so that one page-space unit spans scale pixels and
// returns it PNG encoded.
func (e *Engine) RenderPage(ctx context.Context, index int, scale float64) ([]byte, error) {
	if err := e.checkPage(index); err != nil {
		return nil, err
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid render scale %v", scale)
	}
	if len(e.images) == 0 {
		return nil, fmt.Errorf("render page %d: %w", index, ErrNoPageImages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(e.images[index]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for page %d: %w", index+1, err)
	}

	bounds := e.doc.Pages[index].BBox
	w := int(math.Round(bounds.X2 * scale))
	h := int(math.Round(bounds.Y2 * scale))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("page %d renders to an empty image at scale %v", index+1, scale)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", index+1, err)
	}
	return buf.Bytes(), nil
}
