package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTree is a k-d tree built from the points of a Cloud, for nearest
// neighbor queries.
type KDTree struct {
	tree *kdtree.Tree
	size int
}

// ToKDTree creates a KDTree from the points of the given cloud. For an
// organized cloud only occupied cells enter the tree.
func ToKDTree(cloud *Cloud) *KDTree {
	points := make(kdtree.Points, 0, cloud.Size())
	cloud.Iterate(func(p r3.Vector) bool {
		points = append(points, kdtree.Point{p.X, p.Y, p.Z})
		return true
	})
	return &KDTree{tree: kdtree.New(points, false), size: len(points)}
}

// Size returns the number of points in the tree.
func (kd *KDTree) Size() int {
	return kd.size
}

// NearestNeighbor returns the point nearest to p and the Euclidean distance
// to it. The second return is false when the tree is empty.
func (kd *KDTree) NearestNeighbor(p r3.Vector) (r3.Vector, float64, bool) {
	if kd.size == 0 {
		return r3.Vector{}, 0, false
	}
	got, dist := kd.tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
	q, ok := got.(kdtree.Point)
	if !ok {
		return r3.Vector{}, 0, false
	}
	// gonum reports squared Euclidean distances.
	return r3.Vector{X: q[0], Y: q[1], Z: q[2]}, math.Sqrt(dist), true
}

// KNearestNeighbors returns up to k points nearest to p, closest first.
// If includeSelf is false, a point at exactly p's position is excluded.
func (kd *KDTree) KNearestNeighbors(p r3.Vector, k int, includeSelf bool) []r3.Vector {
	n := k
	if !includeSelf {
		n++
	}
	keep := kdtree.NewNKeeper(n)
	kd.tree.NearestSet(keep, kdtree.Point{p.X, p.Y, p.Z})

	type neighbor struct {
		point r3.Vector
		dist  float64
	}
	neighbors := make([]neighbor, 0, keep.Len())
	for _, c := range keep.Heap {
		q, ok := c.Comparable.(kdtree.Point)
		if !ok {
			// The keeper pads with an infinite-distance placeholder
			// when fewer than n points exist.
			continue
		}
		v := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
		if !includeSelf && v == p {
			continue
		}
		neighbors = append(neighbors, neighbor{point: v, dist: c.Dist})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].dist < neighbors[j].dist
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	out := make([]r3.Vector, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, n.point)
	}
	return out
}
