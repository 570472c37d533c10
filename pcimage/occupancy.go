// Package pcimage converts organized point clouds into grayscale occupancy
// images.
package pcimage

import (
	"image"
	"image/color"

	"github.com/edaniels/golog"

	"github.com/larics/pcmatch/pointcloud"
)

// White is the intensity written for an occupied cell.
const White = 255

// Occupancy renders an organized cloud as a binary occupancy image: 255 for
// an occupied cell, 0 otherwise. The image has the same width and height as
// the cloud's grid. An empty or unorganized cloud is a precondition
// violation: it is logged and an empty image is returned.
func Occupancy(cloud *pointcloud.Cloud, logger golog.Logger) *image.Gray {
	if cloud.Size() == 0 {
		logger.Info("Occupancy - input cloud is empty")
		return image.NewGray(image.Rectangle{})
	}
	if !cloud.IsOrganized() {
		logger.Error("Occupancy - cannot convert an unorganized pointcloud")
		return image.NewGray(image.Rectangle{})
	}
	logger.Infow("Occupancy - converting organized cloud", "width", cloud.Width(), "height", cloud.Height())

	img := image.NewGray(image.Rect(0, 0, cloud.Width(), cloud.Height()))
	for y := 0; y < cloud.Height(); y++ {
		for x := 0; x < cloud.Width(); x++ {
			if _, occupied := cloud.AtGrid(x, y); occupied {
				img.SetGray(x, y, color.Gray{Y: White})
			}
		}
	}
	return img
}
