package scene

import (
	"errors"
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
)

var ErrImageSizeMismatch = errors.New("Color and segmentation images have different dimensions")

// Color is one 3 channel, 8 bit pixel value.
// The channel order is whatever order the segmentation image is stored in,
// and the instance color map must use the same order.
type Color [3]uint8

func RGB(r, g, b uint8) Color {
	return Color{r, g, b}
}

func (c Color) String() string {
	return fmt.Sprintf("(%v,%v,%v)", c[0], c[1], c[2])
}

// SegmentationImage is a render in which every object instance is drawn in a flat, unique color.
// It is never modified after construction.
type SegmentationImage struct {
	img *cimg.Image
}

// Wrap an RGB cimg image. Panics if the image is not 3 channel.
func NewSegmentationImage(img *cimg.Image) *SegmentationImage {
	if img.NChan() != 3 {
		panic(fmt.Sprintf("Segmentation image must have 3 channels, not %v", img.NChan()))
	}
	return &SegmentationImage{img: img}
}

// Build a segmentation image from any cimg image, discarding alpha.
// Color channels are taken as-is, so an NRGBA pixel keeps its exact color regardless of alpha.
func SegmentationImageFromCImage(src *cimg.Image) *SegmentationImage {
	if src.NChan() == 3 && src.Format == cimg.PixelFormatRGB {
		return &SegmentationImage{img: src}
	}
	return &SegmentationImage{img: src.ToRGB()}
}

// Build a segmentation image from any Go image, discarding alpha
func SegmentationImageFromImage(src image.Image) (*SegmentationImage, error) {
	img, err := cimg.FromImage(src, true)
	if err != nil {
		return nil, err
	}
	return SegmentationImageFromCImage(img), nil
}

// Create a segmentation image filled with a single color (mostly useful for tests)
func NewFilledSegmentationImage(width, height int, fill Color) *SegmentationImage {
	s := &SegmentationImage{img: cimg.NewImage(width, height, cimg.PixelFormatRGB)}
	s.Fill(Rect{Width: width, Height: height}, fill)
	return s
}

func (s *SegmentationImage) Width() int {
	return s.img.Width
}

func (s *SegmentationImage) Height() int {
	return s.img.Height
}

func (s *SegmentationImage) Bounds() Rect {
	return Rect{Width: s.img.Width, Height: s.img.Height}
}

// At returns the pixel at x,y. The caller must ensure that x,y is inside the image.
func (s *SegmentationImage) At(x, y int) Color {
	p := s.img.Pixels[y*s.img.Stride+x*3:]
	return Color{p[0], p[1], p[2]}
}

// Row returns the raw pixels of row y, from x1 (inclusive) to x2 (exclusive)
func (s *SegmentationImage) Row(y, x1, x2 int) []byte {
	start := y*s.img.Stride + x1*3
	return s.img.Pixels[start : start+(x2-x1)*3]
}

// Fill paints a rectangle (clipped to the image).
// This is only intended for constructing images, before they are shared.
func (s *SegmentationImage) Fill(r Rect, c Color) {
	r = r.Clip(s.img.Width, s.img.Height)
	for y := r.Y; y < r.Y2(); y++ {
		row := s.Row(y, r.X, r.X2())
		for i := 0; i < len(row); i += 3 {
			row[i] = c[0]
			row[i+1] = c[1]
			row[i+2] = c[2]
		}
	}
}

func (s *SegmentationImage) CImage() *cimg.Image {
	return s.img
}
