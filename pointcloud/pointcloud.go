// Package pointcloud provides point cloud processing operations for pattern
// matching: PLY and PCD loading, ICP registration, box cropping, statistical
// outlier removal, upsampling, demeaning, and rasterization of unorganized
// clouds into organized grids.
//
// Clouds are slice backed. A cloud is either unorganized (a flat list of
// points) or organized as a fixed width x height grid where each cell holds
// at most one point. Cell occupancy is tracked with an explicit mask rather
// than a sentinel point, so a genuine point at the origin is distinguishable
// from an empty cell.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	totalX, totalY, totalZ float64
	count                  int
}

// NewMetaData returns a new MetaData with bounds set such that any merged
// point will override them.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the meta data with the new point.
func (meta *MetaData) Merge(v r3.Vector) {
	if v.X > meta.MaxX {
		meta.MaxX = v.X
	}
	if v.Y > meta.MaxY {
		meta.MaxY = v.Y
	}
	if v.Z > meta.MaxZ {
		meta.MaxZ = v.Z
	}

	if v.X < meta.MinX {
		meta.MinX = v.X
	}
	if v.Y < meta.MinY {
		meta.MinY = v.Y
	}
	if v.Z < meta.MinZ {
		meta.MinZ = v.Z
	}

	meta.totalX += v.X
	meta.totalY += v.Y
	meta.totalZ += v.Z
	meta.count++
}

// Cloud is an ordered collection of 3D points, optionally organized as a
// width x height grid of cells.
type Cloud struct {
	points   []r3.Vector
	occupied []bool // nil iff the cloud is unorganized
	width    int
	height   int
	meta     MetaData
}

// New returns an empty unorganized Cloud.
func New() *Cloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty unorganized Cloud with capacity for the
// given number of points.
func NewWithPrealloc(size int) *Cloud {
	return &Cloud{
		points: make([]r3.Vector, 0, size),
		meta:   NewMetaData(),
	}
}

// NewOrganized returns an organized Cloud of width x height cells, all
// unoccupied.
func NewOrganized(width, height int) *Cloud {
	return &Cloud{
		points:   make([]r3.Vector, width*height),
		occupied: make([]bool, width*height),
		width:    width,
		height:   height,
		meta:     NewMetaData(),
	}
}

// Size returns the number of points in the cloud. For an organized cloud
// this is the total cell count, occupied or not.
func (c *Cloud) Size() int {
	return len(c.points)
}

// IsOrganized reports whether the cloud is laid out as a 2D grid.
func (c *Cloud) IsOrganized() bool {
	return c.occupied != nil
}

// Width returns the grid width of an organized cloud, 0 otherwise.
func (c *Cloud) Width() int {
	return c.width
}

// Height returns the grid height of an organized cloud, 0 otherwise.
func (c *Cloud) Height() int {
	return c.height
}

// MetaData returns the meta data.
func (c *Cloud) MetaData() MetaData {
	return c.meta
}

// Append adds a point to an unorganized cloud. Appending to an organized
// cloud panics; use SetGrid instead.
func (c *Cloud) Append(p r3.Vector) {
	if c.IsOrganized() {
		panic("pointcloud: cannot append to an organized cloud")
	}
	c.points = append(c.points, p)
	c.meta.Merge(p)
}

// At returns the point at the given index.
func (c *Cloud) At(i int) r3.Vector {
	return c.points[i]
}

// AtGrid returns the point stored at cell (x, y) of an organized cloud and
// whether that cell is occupied.
func (c *Cloud) AtGrid(x, y int) (r3.Vector, bool) {
	i := y*c.width + x
	return c.points[i], c.occupied[i]
}

// SetGrid stores a point at cell (x, y) of an organized cloud, marking the
// cell occupied. Overwriting a cell keeps the totals exact; the min/max
// bounds are not recomputed and may stay loose.
func (c *Cloud) SetGrid(x, y int, p r3.Vector) {
	i := y*c.width + x
	if c.occupied[i] {
		old := c.points[i]
		c.meta.totalX -= old.X
		c.meta.totalY -= old.Y
		c.meta.totalZ -= old.Z
		c.meta.count--
	}
	c.points[i] = p
	c.occupied[i] = true
	c.meta.Merge(p)
}

// OccupiedCount returns the number of occupied cells of an organized cloud,
// or the point count of an unorganized one.
func (c *Cloud) OccupiedCount() int {
	if !c.IsOrganized() {
		return len(c.points)
	}
	n := 0
	for _, o := range c.occupied {
		if o {
			n++
		}
	}
	return n
}

// Iterate calls the given function for each point in the cloud. For an
// organized cloud only occupied cells are visited. If the function returns
// false, iteration stops.
func (c *Cloud) Iterate(fn func(p r3.Vector) bool) {
	for i, p := range c.points {
		if c.occupied != nil && !c.occupied[i] {
			continue
		}
		if !fn(p) {
			return
		}
	}
}
