package pcimage

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"go.uber.org/multierr"
)

// SameImgSize compares two images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	if (g1.Bounds().Max.X != g2.Bounds().Max.X) || (g1.Bounds().Max.Y != g2.Bounds().Max.Y) {
		return false
	}
	return true
}

// CountWhite returns how many pixels of a grayscale image are fully white.
func CountWhite(g *image.Gray) int {
	count := 0
	for y := g.Bounds().Min.Y; y < g.Bounds().Max.Y; y++ {
		for x := g.Bounds().Min.X; x < g.Bounds().Max.X; x++ {
			if g.At(x, y).(color.Gray).Y == White {
				count++
			}
		}
	}
	return count
}

// WritePNGFile writes the image to the given path as a PNG.
func WritePNGFile(img image.Image, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, img)
}
