package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// Organize rasterizes an unorganized cloud onto an organized grid of
// gridWidth*resolution x gridHeight*resolution cells, with the world origin
// at the grid midpoint. Resolution is in cells per unit length. Points whose
// computed cell falls outside the grid are silently discarded; when several
// points land in the same cell the one with the greatest z wins.
//
// An empty input cloud is returned unchanged, not as a freshly allocated
// grid, so callers must not assume a fixed output size for empty inputs.
func Organize(cloud *Cloud, resolution float64, gridWidth, gridHeight int) *Cloud {
	if cloud.Size() == 0 {
		return cloud
	}

	width := int(float64(gridWidth) * resolution)
	height := int(float64(gridHeight) * resolution)
	organized := NewOrganized(width, height)

	offsetX := int(math.Round(float64(width) / 2.0))
	offsetY := int(math.Round(float64(height) / 2.0))
	cloud.Iterate(func(p r3.Vector) bool {
		x := int(math.Round(p.X*resolution)) + offsetX
		y := int(math.Round(p.Y*resolution)) + offsetY
		if x < 0 || x >= width || y < 0 || y >= height {
			return true
		}
		current, occupied := organized.AtGrid(x, y)
		if !occupied || p.Z > current.Z {
			organized.SetGrid(x, y, p)
		}
		return true
	})
	return organized
}
