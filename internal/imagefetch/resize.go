package imagefetch

import (
	"image"
	"image/color"
)

// DownscaleMaxDim returns img unchanged if both dimensions are already at or
// below maxDim; otherwise it box-filters img down so its longest side equals
// maxDim, preserving aspect ratio. Used for the pre-inference downscale.
func DownscaleMaxDim(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return ResizeBox(img, newW, newH)
}

// ResizeBox box-filters img to exactly width x height. Every destination
// pixel averages the block of source pixels it covers; this is the same
// primitive used for the inference downscale and the dHash 9x8 resize.
func ResizeBox(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		sy0 := y * srcH / height
		sy1 := (y + 1) * srcH / height
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < width; x++ {
			sx0 := x * srcW / width
			sx1 := (x + 1) * srcW / width
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}

			var rSum, gSum, bSum, aSum, n uint64
			for sy := sy0; sy < sy1 && sy < srcH; sy++ {
				for sx := sx0; sx < sx1 && sx < srcW; sx++ {
					r, g, bl, a := img.At(b.Min.X+sx, b.Min.Y+sy).RGBA()
					rSum += uint64(r)
					gSum += uint64(g)
					bSum += uint64(bl)
					aSum += uint64(a)
					n++
				}
			}
			if n == 0 {
				n = 1
			}
			dst.Set(x, y, color.RGBA64{
				R: uint16(rSum / n),
				G: uint16(gSum / n),
				B: uint16(bSum / n),
				A: uint16(aSum / n),
			})
		}
	}
	return dst
}

// ToGray converts img to an 8-bit grayscale raster using the standard
// luminance-weighted formula.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return gray
}
