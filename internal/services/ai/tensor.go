package ai

import (
	"image"

	"github.com/disintegration/imaging"
)

// Shape is an image size in pixels, height first like the model tensors.
type Shape struct {
	Height int
	Width  int
}

// ShapeOf returns the shape of img.
func ShapeOf(img image.Image) Shape {
	b := img.Bounds()
	return Shape{Height: b.Dy(), Width: b.Dx()}
}

// ToNRGBA converts any decoded image to a zero-origin, fully opaque NRGBA
// copy. Alpha is dropped, not composited, so color values are kept as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Resize scales img to exactly width x height.
func Resize(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.CatmullRom)
}

// NewTensor packs img into a batch-1 NHWC RGB tensor, dropping alpha.
func NewTensor(img *image.NRGBA) Tensor {
	b := img.Bounds()
	height, width := b.Dy(), b.Dx()
	data := make([]uint8, 0, height*width*3)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4]
			data = append(data, px[0], px[1], px[2])
		}
	}

	return Tensor{Height: height, Width: width, Channels: 3, Data: data}
}
