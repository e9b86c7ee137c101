package validator

import (
	"image"

	"github.com/civicsignal/complaint-ai-core/internal/imagefetch"
)

// dHash dimensions: a 9x8 grayscale resize yields 8x8 = 64 column-wise
// neighbor comparisons, one bit each.
const (
	dHashWidth  = 9
	dHashHeight = 8
)

// Fingerprint computes the 64-bit difference hash of img: resize to 9x8
// grayscale, then set bit (x,y) when pixel(x,y) is brighter than
// pixel(x+1,y), read row-major into a uint64.
func Fingerprint(img image.Image) uint64 {
	small := imagefetch.ResizeBox(img, dHashWidth, dHashHeight)
	gray := imagefetch.ToGray(small)

	var hash uint64
	bit := uint(0)
	for y := 0; y < dHashHeight; y++ {
		for x := 0; x < dHashWidth-1; x++ {
			left := gray.GrayAt(x, y).Y
			right := gray.GrayAt(x+1, y).Y
			if left > right {
				hash |= 1 << bit
			}
			bit++
		}
	}
	return hash
}
