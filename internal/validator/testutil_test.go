package validator

import (
	"image"
	"image/color"
)

func solidImage(w, h int, gray uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: gray})
		}
	}
	return img
}
