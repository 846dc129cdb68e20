package escpos

import (
	"image"
)

// Paper widths in dots at 203 dpi.
const (
	Width80mm = 576
	Width58mm = 384
)

const luminanceThreshold = 128

// Raster appends the image in raster bit mode (GS v 0). The image is
// scaled down to maxWidth if wider and converted to 1bpp by luminance
// threshold. Pixels darker than the threshold print black.
func (d *Document) Raster(img image.Image, maxWidth int) *Document {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return d
	}

	w, h := srcW, srcH
	if w > maxWidth {
		h = srcH * maxWidth / srcW
		w = maxWidth
	}

	widthBytes := (w + 7) / 8
	data := make([]byte, widthBytes*h)

	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			r, g, b, a := img.At(srcX, srcY).RGBA()
			if a == 0 {
				continue // transparent prints white
			}
			// ITU-R BT.601 luma, 16-bit channels scaled to 8-bit.
			lum := (299*r + 587*g + 114*b) / 1000 >> 8
			if lum < luminanceThreshold {
				data[y*widthBytes+x/8] |= 0x80 >> (x % 8)
			}
		}
	}

	xL := byte(widthBytes & 0xFF)
	xH := byte(widthBytes >> 8)
	yL := byte(h & 0xFF)
	yH := byte(h >> 8)
	d.buf.Write([]byte{gs, 'v', '0', 0, xL, xH, yL, yH})
	d.buf.Write(data)
	d.buf.WriteByte('\n')
	return d
}
